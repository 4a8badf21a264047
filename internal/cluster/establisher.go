package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/topology/internal/protobuf/protokv"
	"github.com/dogmatiq/topology/persistence/kv"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultEstablishInterval is the default interval at which an [Establisher]
// reconciles the established views with the registry.
const DefaultEstablishInterval = 5 * time.Second

// Establisher maintains the established view of each cluster based on the
// live registrations in the registry.
//
// Any number of establishers may run concurrently against the same store.
// Given the same registrations they produce identical view records.
type Establisher struct {
	Keyspaces kv.Store
	Interval  time.Duration
	Logger    *slog.Logger
}

// Run reconciles the established views until ctx is canceled.
func (e *Establisher) Run(ctx context.Context) error {
	registry, err := e.Keyspaces.Open(ctx, RegistryKeyspace)
	if err != nil {
		return err
	}
	defer registry.Close()

	views, err := e.Keyspaces.Open(ctx, ViewKeyspace)
	if err != nil {
		return err
	}
	defer views.Close()

	interval := e.Interval
	if interval <= 0 {
		interval = DefaultEstablishInterval
	}

	for {
		if err := e.Establish(ctx, registry, views); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			e.Logger.WarnContext(
				ctx,
				"unable to establish cluster views",
				slog.String("error", err.Error()),
			)
		}

		if err := linger.SleepX(
			ctx,
			linger.FullJitter,
			interval,
		); err != nil {
			return err
		}
	}
}

// Establish performs a single reconciliation of the view records in views
// with the live registrations in registry.
func (e *Establisher) Establish(
	ctx context.Context,
	registry, views kv.Keyspace,
) error {
	regs, err := (&Registry{
		Keyspace: registry,
		Logger:   e.Logger,
	}).Live(ctx)
	if err != nil {
		return err
	}

	members := map[string][]string{}
	for _, reg := range regs {
		members[reg.ClusterID] = append(members[reg.ClusterID], reg.InstanceID)
	}

	existing, corrupt, err := readViews(ctx, views, e.Logger)
	if err != nil {
		return err
	}

	for _, k := range corrupt {
		if err := views.Set(ctx, k, nil); err != nil {
			return fmt.Errorf("unable to remove corrupt established view %q: %w", string(k), err)
		}

		e.Logger.WarnContext(
			ctx,
			"removed corrupt established view",
			slog.String("key", string(k)),
		)
	}

	for clusterID, ids := range members {
		prev, ok := existing[clusterID]
		if ok && isUpToDate(prev, ids) {
			continue
		}

		next := nextView(clusterID, prev, ids)

		if err := protokv.Set(
			ctx,
			views,
			[]byte(clusterID),
			marshalView(next),
		); err != nil {
			return fmt.Errorf("unable to write established view of cluster %q: %w", clusterID, err)
		}

		e.Logger.InfoContext(
			ctx,
			"established new cluster view",
			slog.String("cluster_id", clusterID),
			slog.String("leader_id", next.LeaderID),
			slog.String("sync_token", next.SyncToken),
			slog.Int("member_count", len(next.Members)),
		)
	}

	for clusterID := range existing {
		if _, ok := members[clusterID]; ok {
			continue
		}

		if err := protokv.Delete(ctx, views, []byte(clusterID)); err != nil {
			return fmt.Errorf("unable to remove established view of cluster %q: %w", clusterID, err)
		}

		e.Logger.InfoContext(
			ctx,
			"removed established view of cluster with no live members",
			slog.String("cluster_id", clusterID),
		)
	}

	return nil
}

// isUpToDate returns true if r already describes a cluster with exactly the
// given (sorted) members.
func isUpToDate(r viewRecord, members []string) bool {
	return r.Members != nil &&
		slices.Equal(r.Members, members) &&
		r.hasMember(r.LeaderID)
}

// nextView returns the view record that replaces prev for a cluster with the
// given (sorted) members.
//
// A previous leader that is still a member retains leadership, otherwise the
// member with the lowest ID becomes the leader.
func nextView(clusterID string, prev viewRecord, members []string) viewRecord {
	next := viewRecord{
		ClusterID:  clusterID,
		LeaderID:   members[0],
		Generation: prev.Generation + 1,
		Members:    slices.Clone(members),
	}

	if prev.LeaderID != "" && slices.Contains(members, prev.LeaderID) {
		next.LeaderID = prev.LeaderID
	}

	next.SyncToken = syncToken(next)

	return next
}

// syncToken returns a token that identifies a specific generation of a
// cluster's membership.
func syncToken(r viewRecord) string {
	h := xxhash.New()
	h.WriteString(r.LeaderID)
	h.WriteString("\x00")
	h.WriteString(strings.Join(r.Members, "\x00"))

	return fmt.Sprintf("%d-%016x", r.Generation, h.Sum64())
}

// readViews returns the view records in ks, keyed by cluster ID, and the keys
// of any records that are corrupt.
//
// A record stored under a key other than its own cluster ID is corrupt.
func readViews(
	ctx context.Context,
	ks kv.Keyspace,
	logger *slog.Logger,
) (map[string]viewRecord, [][]byte, error) {
	records := map[string]viewRecord{}
	var corrupt [][]byte

	if err := protokv.Range(
		ctx,
		ks,
		func(ctx context.Context, k []byte, s *structpb.Struct) (bool, error) {
			r, err := unmarshalView(s)
			if err == nil && r.ClusterID != string(k) {
				err = fmt.Errorf("established view of cluster %q is stored under the wrong key", r.ClusterID)
			}

			if err != nil {
				logger.WarnContext(
					ctx,
					"found corrupt established view",
					slog.String("key", string(k)),
					slog.String("error", err.Error()),
				)
				corrupt = append(corrupt, slices.Clone(k))
				return true, nil
			}

			records[r.ClusterID] = r
			return true, nil
		},
	); err != nil {
		return nil, nil, fmt.Errorf("unable to read established views: %w", err)
	}

	return records, corrupt, nil
}
