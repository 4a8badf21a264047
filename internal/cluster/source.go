package cluster

import (
	"context"

	"github.com/dogmatiq/topology/established"
	"github.com/dogmatiq/topology/internal/protobuf/protokv"
	"github.com/dogmatiq/topology/persistence/kv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
	"google.golang.org/protobuf/types/known/structpb"
)

// Source reads the established views from a key/value store.
//
// The properties of each member are taken from its live registration. A
// member whose registration has expired since the view was established is
// reported without properties.
type Source struct {
	Registry kv.Keyspace
	Views    kv.Keyspace
	Logger   *slog.Logger
}

// Snapshot returns the established view of each cluster.
//
// Corrupt view records are skipped. They are removed by the [Establisher].
func (s *Source) Snapshot(ctx context.Context) ([]established.Resource, error) {
	regs, err := (&Registry{
		Keyspace: s.Registry,
		Logger:   s.Logger,
	}).Live(ctx)
	if err != nil {
		return nil, err
	}

	props := map[string]map[string]string{}
	for _, reg := range regs {
		props[reg.InstanceID] = reg.Properties
	}

	var resources []established.Resource

	if err := protokv.Range(
		ctx,
		s.Views,
		func(ctx context.Context, k []byte, st *structpb.Struct) (bool, error) {
			r, err := unmarshalView(st)
			if err != nil {
				s.Logger.WarnContext(
					ctx,
					"ignored corrupt established view",
					slog.String("key", string(k)),
					slog.String("error", err.Error()),
				)
				return true, nil
			}

			resources = append(resources, &resource{r, props})
			return true, nil
		},
	); err != nil {
		return nil, err
	}

	return resources, nil
}

// resource is an [established.Resource] backed by a view record.
type resource struct {
	record     viewRecord
	properties map[string]map[string]string
}

func (r *resource) ClusterID() string {
	return r.record.ClusterID
}

func (r *resource) LeaderID() string {
	return r.record.LeaderID
}

func (r *resource) SyncToken() (string, bool) {
	return r.record.SyncToken, r.record.SyncToken != ""
}

func (r *resource) Members() ([]established.Member, error) {
	if r.record.Members == nil {
		return nil, established.ErrNoMembers
	}

	members := make([]established.Member, 0, len(r.record.Members))
	for _, id := range r.record.Members {
		members = append(members, established.Member{
			ID:         id,
			Properties: maps.Clone(r.properties[id]),
		})
	}

	return members, nil
}

// Close closes the keyspaces used by the source.
func (s *Source) Close() error {
	err := s.Registry.Close()
	if e := s.Views.Close(); err == nil {
		err = e
	}
	return err
}
