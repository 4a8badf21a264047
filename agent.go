package topology

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/established"
	"github.com/dogmatiq/topology/internal/cluster"
	"github.com/dogmatiq/topology/internal/telemetry"
	"github.com/dogmatiq/topology/internal/telemetry/instrumentedkv"
	"github.com/dogmatiq/topology/persistence/driver/memory"
	"github.com/dogmatiq/topology/view"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// Agent maintains the local instance's view of the topology.
type Agent struct {
	cfg       agentConfig
	holder    discovery.Holder
	registrar *cluster.Registrar

	m          sync.Mutex
	properties map[string]string
}

// propertyAdvertiser is implemented by sources that advertise the local
// instance's properties themselves.
type propertyAdvertiser interface {
	SetProperties(map[string]string) error
}

// New returns a new agent.
//
// It panics if both [WithSource] and [WithClusterID] are provided, as the
// cluster ID is then determined by the source.
func New(options ...AgentOption) *Agent {
	a := &Agent{}

	for _, opt := range options {
		opt(&a.cfg)
	}

	if a.cfg.Source != nil && a.cfg.ClusterID != "" {
		panic("cluster ID can not be set when using an alternative source")
	}

	if a.cfg.InstanceID == "" {
		a.cfg.InstanceID = uuid.NewString()
	}

	if a.cfg.Keyspaces == nil {
		a.cfg.Keyspaces = &memory.KeyValueStore{}
	}

	a.properties = maps.Clone(a.cfg.Properties)
	if a.properties == nil {
		a.properties = map[string]string{}
	}

	if a.cfg.Source == nil {
		a.registrar = &cluster.Registrar{
			Keyspaces: &instrumentedkv.Store{
				Next:      a.cfg.Keyspaces,
				Telemetry: &a.cfg.Telemetry,
			},
			InstanceID:    a.cfg.InstanceID,
			RenewInterval: a.cfg.HeartbeatInterval,
			Logger:        a.recorder("registrar").Logger(),
		}
		a.registrar.SetProperties(a.properties)
	}

	for _, l := range a.cfg.Listeners {
		a.holder.Subscribe(context.Background(), l)
	}

	return a
}

// InstanceID returns the ID of the local instance.
func (a *Agent) InstanceID() string {
	return a.cfg.InstanceID
}

// Topology returns the current view of the topology, or nil if the local
// instance has not yet been established as a member of a cluster.
//
// The returned view must not be modified. Use [view.TopologyView.IsCurrent] to
// check whether it is still authoritative.
func (a *Agent) Topology() *view.TopologyView {
	return a.holder.Current()
}

// Subscribe adds a listener that is notified of topology events. It returns a
// function that removes the listener.
func (a *Agent) Subscribe(ctx context.Context, l discovery.Listener) (unsubscribe func()) {
	return a.holder.Subscribe(ctx, l)
}

// SetProperty sets a property advertised by the local instance.
//
// The change becomes visible to other instances after their next discovery
// cycle. If the property can not be advertised, the local instance's
// properties are left unchanged.
func (a *Agent) SetProperty(name, value string) error {
	a.m.Lock()
	defer a.m.Unlock()

	props := maps.Clone(a.properties)
	props[name] = value

	if a.registrar != nil {
		a.registrar.SetProperties(props)
	} else if adv, ok := a.cfg.Source.(propertyAdvertiser); ok {
		if err := adv.SetProperties(props); err != nil {
			return fmt.Errorf("unable to set property %q: %w", name, err)
		}
	} else {
		return fmt.Errorf("unable to set property %q: the source does not support advertising properties", name)
	}

	a.properties = props
	return nil
}

// Properties returns the properties advertised by the local instance.
func (a *Agent) Properties() map[string]string {
	a.m.Lock()
	defer a.m.Unlock()
	return maps.Clone(a.properties)
}

// Run runs the agent until ctx is canceled or an error occurs.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	source := a.cfg.Source

	if a.registrar != nil {
		s, err := a.runRegistry(ctx, g)
		if err != nil {
			return err
		}
		defer s.Close()
		source = s
	}

	d := &discovery.Discoverer{
		InstanceID:   a.cfg.InstanceID,
		Source:       source,
		Builder:      &established.Builder{Logger: a.recorder("builder").Logger()},
		Holder:       &a.holder,
		PollInterval: a.cfg.PollInterval,
		Telemetry:    &a.cfg.Telemetry,
	}

	g.Go(func() error {
		return d.Run(ctx)
	})

	return g.Wait()
}

// runRegistry starts the components that maintain the key/value store based
// registry, and returns a source that reads from it.
//
// The source must be closed after the group has finished.
func (a *Agent) runRegistry(ctx context.Context, g *errgroup.Group) (*cluster.Source, error) {
	store := a.registrar.Keyspaces

	clusterID := a.cfg.ClusterID
	if clusterID == "" {
		id, err := cluster.LoadClusterID(ctx, store)
		if err != nil {
			return nil, err
		}
		clusterID = id
	}

	a.registrar.ClusterID = clusterID

	registry, err := store.Open(ctx, cluster.RegistryKeyspace)
	if err != nil {
		return nil, err
	}

	views, err := store.Open(ctx, cluster.ViewKeyspace)
	if err != nil {
		registry.Close()
		return nil, err
	}

	g.Go(func() error {
		return a.registrar.Run(ctx)
	})

	g.Go(func() error {
		e := &cluster.Establisher{
			Keyspaces: store,
			Interval:  a.cfg.PollInterval,
			Logger:    a.recorder("establisher").Logger(),
		}
		return e.Run(ctx)
	})

	return &cluster.Source{
		Registry: registry,
		Views:    views,
		Logger:   a.recorder("source").Logger(),
	}, nil
}

func (a *Agent) recorder(name string) *telemetry.Recorder {
	return a.cfg.Telemetry.Recorder(
		"github.com/dogmatiq/topology",
		name,
		telemetry.String("instance_id", a.cfg.InstanceID),
	)
}
