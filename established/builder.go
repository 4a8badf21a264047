package established

import (
	"fmt"

	"github.com/dogmatiq/topology/view"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Builder is the default [ClusterViewBuilder].
type Builder struct {
	Logger *slog.Logger
}

var _ ClusterViewBuilder = (*Builder)(nil)

// BuildClusterView returns the cluster view described by r.
//
// Members are ordered by ID. The recorded leader ID takes precedence, falling
// back to the lexicographically first member. If the data names more than one
// leader, the first one found is kept and the others are logged. Members with
// an empty ID are ignored.
func (b *Builder) BuildClusterView(r Resource, localID string) (*view.ClusterView, error) {
	if r == nil {
		return nil, ErrNoViewResource
	}

	if r.ClusterID() == "" {
		return nil, fmt.Errorf("unable to build view: %w: missing cluster ID", ErrCorruptView)
	}

	members, err := r.Members()
	if err != nil {
		return nil, fmt.Errorf("unable to build view of cluster %q: %w", r.ClusterID(), err)
	}

	members = slices.DeleteFunc(
		slices.Clone(members),
		func(m Member) bool {
			if m.ID != "" {
				return false
			}
			b.logger().Error(
				"ignored member with an empty ID in established view",
				slog.String("cluster_id", r.ClusterID()),
			)
			return true
		},
	)

	if len(members) == 0 {
		return nil, fmt.Errorf("unable to build view of cluster %q: %w", r.ClusterID(), ErrNoMembers)
	}

	slices.SortFunc(members, func(a, b Member) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	leaderID := b.resolveLeader(r, members)

	var options []view.ClusterViewOption
	if t, ok := r.SyncToken(); ok {
		options = append(options, view.WithSyncToken(t))
	}

	c := view.NewClusterView(r.ClusterID(), options...)

	for _, m := range members {
		if !c.AddInstance(
			view.NewInstanceDescription(
				c,
				m.ID,
				m.ID == leaderID,
				m.ID == localID,
				m.Properties,
			),
		) {
			b.logger().Warn(
				"ignored duplicate member in established view",
				slog.String("cluster_id", r.ClusterID()),
				slog.String("instance_id", m.ID),
			)
		}
	}

	return c, nil
}

// resolveLeader returns the ID of the member that leads the cluster. members
// must already be sorted.
func (b *Builder) resolveLeader(r Resource, members []Member) string {
	recorded := r.LeaderID()
	leader := ""

	if recorded != "" {
		for _, m := range members {
			if m.ID == recorded {
				leader = recorded
				break
			}
		}

		if leader == "" {
			b.logger().Warn(
				"recorded leader is not a member of the established view",
				slog.String("cluster_id", r.ClusterID()),
				slog.String("leader_id", recorded),
			)
		}
	}

	for _, m := range members {
		if !m.Leader || m.ID == leader {
			continue
		}

		if leader == "" {
			leader = m.ID
			continue
		}

		b.logger().Error(
			"established view has more than one leader, keeping the first",
			slog.String("cluster_id", r.ClusterID()),
			slog.String("leader_id", leader),
			slog.String("ignored_leader_id", m.ID),
		)
	}

	if leader == "" {
		return members[0].ID
	}

	return leader
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
