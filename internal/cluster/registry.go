package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/topology/internal/protobuf/protokv"
	"github.com/dogmatiq/topology/persistence/kv"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"google.golang.org/protobuf/types/known/structpb"
)

// Registry provides access to the instance registrations in a keyspace.
type Registry struct {
	Keyspace kv.Keyspace
	Logger   *slog.Logger
}

// Register writes (or renews) the registration of an instance.
func (r *Registry) Register(ctx context.Context, reg Registration) error {
	if err := protokv.Set(
		ctx,
		r.Keyspace,
		[]byte(reg.InstanceID),
		marshalRegistration(reg),
	); err != nil {
		return fmt.Errorf("unable to register instance %q: %w", reg.InstanceID, err)
	}
	return nil
}

// Deregister removes the registration of an instance.
func (r *Registry) Deregister(ctx context.Context, id string) error {
	if err := protokv.Delete(ctx, r.Keyspace, []byte(id)); err != nil {
		return fmt.Errorf("unable to deregister instance %q: %w", id, err)
	}
	return nil
}

// Live returns the registrations that have not expired, ordered by instance
// ID. Expired registrations are removed from the keyspace.
func (r *Registry) Live(ctx context.Context) ([]Registration, error) {
	var (
		live    []Registration
		expired []string
		now     = time.Now()
	)

	if err := protokv.Range(
		ctx,
		r.Keyspace,
		func(ctx context.Context, k []byte, s *structpb.Struct) (bool, error) {
			reg, err := unmarshalRegistration(s)
			if err != nil {
				r.Logger.WarnContext(
					ctx,
					"ignored corrupt instance registration",
					slog.String("key", string(k)),
					slog.String("error", err.Error()),
				)
				return true, nil
			}

			if reg.IsExpired(now) {
				expired = append(expired, reg.InstanceID)
			} else {
				live = append(live, reg)
			}

			return true, nil
		},
	); err != nil {
		return nil, fmt.Errorf("unable to read instance registrations: %w", err)
	}

	for _, id := range expired {
		if err := r.Deregister(ctx, id); err != nil {
			return nil, err
		}

		r.Logger.DebugContext(
			ctx,
			"removed expired instance registration",
			slog.String("instance_id", id),
		)
	}

	slices.SortFunc(live, func(a, b Registration) int {
		switch {
		case a.InstanceID < b.InstanceID:
			return -1
		case a.InstanceID > b.InstanceID:
			return 1
		default:
			return 0
		}
	})

	return live, nil
}
