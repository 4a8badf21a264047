package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/topology/persistence/kv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

const (
	// DefaultRenewInterval is the default interval at which an instance's
	// registration is renewed.
	DefaultRenewInterval = 10 * time.Second

	// deregisterTimeout is the maximum time to spend deregistering an
	// instance when the registrar stops.
	deregisterTimeout = 5 * time.Second
)

// Registrar registers the local instance in the registry and keeps its
// registration up to date until it is stopped.
type Registrar struct {
	Keyspaces     kv.Store
	InstanceID    string
	ClusterID     string
	RenewInterval time.Duration
	Logger        *slog.Logger

	once       sync.Once
	m          sync.Mutex
	properties map[string]string
	changed    chan struct{}
}

// SetProperties replaces the properties advertised by the local instance.
//
// The registration is updated immediately if the registrar is running.
func (r *Registrar) SetProperties(props map[string]string) {
	r.init()

	r.m.Lock()
	r.properties = maps.Clone(props)
	r.m.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Properties returns a copy of the properties advertised by the local
// instance.
func (r *Registrar) Properties() map[string]string {
	r.m.Lock()
	defer r.m.Unlock()
	return maps.Clone(r.properties)
}

// Run registers the instance and renews the registration until ctx is
// canceled, at which point the registration is removed.
func (r *Registrar) Run(ctx context.Context) error {
	r.init()

	ks, err := r.Keyspaces.Open(ctx, RegistryKeyspace)
	if err != nil {
		return err
	}
	defer ks.Close()

	reg := &Registry{
		Keyspace: ks,
		Logger:   r.Logger,
	}

	interval := r.RenewInterval
	if interval <= 0 {
		interval = DefaultRenewInterval
	}

	defer r.deregister(ctx, reg)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.changed:
		case <-timer.C:
		}

		if err := r.register(ctx, reg, interval); err != nil {
			return err
		}

		timer.Reset(interval / 2)
	}
}

func (r *Registrar) register(
	ctx context.Context,
	reg *Registry,
	interval time.Duration,
) error {
	expiresAt := time.Now().Add(interval * 2)

	if err := reg.Register(
		ctx,
		Registration{
			InstanceID: r.InstanceID,
			ClusterID:  r.ClusterID,
			Properties: r.Properties(),
			ExpiresAt:  expiresAt,
		},
	); err != nil {
		return err
	}

	r.Logger.DebugContext(
		ctx,
		"instance registration renewed",
		slog.String("instance_id", r.InstanceID),
		slog.String("cluster_id", r.ClusterID),
		slog.Time("expires_at", expiresAt),
	)

	return nil
}

func (r *Registrar) deregister(ctx context.Context, reg *Registry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
	defer cancel()

	if err := reg.Deregister(ctx, r.InstanceID); err != nil {
		r.Logger.WarnContext(
			ctx,
			"unable to deregister instance",
			slog.String("instance_id", r.InstanceID),
			slog.String("error", err.Error()),
		)
		return
	}

	r.Logger.DebugContext(
		ctx,
		"instance deregistered",
		slog.String("instance_id", r.InstanceID),
	)
}

func (r *Registrar) init() {
	r.once.Do(func() {
		r.changed = make(chan struct{}, 1)
	})
}
