// Package established builds cluster views from previously persisted
// membership data.
//
// The persistence backend is abstracted by [Resource], allowing views to be
// built from a key/value store, a gossip protocol or anything else that can
// report a cluster's members and (optionally) its leader.
package established

import (
	"errors"

	"github.com/dogmatiq/topology/view"
)

// Resource is the persisted representation of a single cluster's view.
type Resource interface {
	// ClusterID returns the ID of the cluster.
	ClusterID() string

	// LeaderID returns the ID of the member that was recorded as the leader,
	// or an empty string if no leader was recorded.
	LeaderID() string

	// SyncToken returns the opaque token that changes whenever the cluster's
	// established view is rewritten.
	SyncToken() (string, bool)

	// Members returns the members of the cluster, in any order.
	//
	// It returns [ErrNoMembers] if the resource has no member data.
	Members() ([]Member, error)
}

// Member is the persisted representation of a cluster member.
type Member struct {
	// ID is the instance's stable identifier.
	ID string

	// Leader is true if the member's own record claims leadership.
	Leader bool

	// Properties is the member's property bag.
	Properties map[string]string
}

// ClusterViewBuilder builds a [view.ClusterView] from a [Resource].
type ClusterViewBuilder interface {
	// BuildClusterView returns the cluster view described by r. The member
	// with the ID localID, if any, is marked as the local instance.
	BuildClusterView(r Resource, localID string) (*view.ClusterView, error)
}

var (
	// ErrNoViewResource indicates that there is no persisted view to build a
	// cluster view from.
	ErrNoViewResource = errors.New("established view resource does not exist")

	// ErrNoMembers indicates that a persisted view does not contain any member
	// data.
	ErrNoMembers = errors.New("established view has no members")

	// ErrCorruptView indicates that a persisted view contains data that can
	// not describe a cluster, such as an empty cluster ID.
	ErrCorruptView = errors.New("established view is corrupt")
)
