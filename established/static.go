package established

import "golang.org/x/exp/slices"

// Static is a [Resource] that holds its data in memory.
type Static struct {
	Cluster  string
	Leader   string
	Token    string
	HasToken bool

	// MemberList is the list of members. A nil list is reported as
	// [ErrNoMembers].
	MemberList []Member
}

var _ Resource = (*Static)(nil)

// ClusterID returns the ID of the cluster.
func (s *Static) ClusterID() string { return s.Cluster }

// LeaderID returns the recorded leader ID.
func (s *Static) LeaderID() string { return s.Leader }

// SyncToken returns the sync token, if any.
func (s *Static) SyncToken() (string, bool) { return s.Token, s.HasToken }

// Members returns the members of the cluster.
func (s *Static) Members() ([]Member, error) {
	if s.MemberList == nil {
		return nil, ErrNoMembers
	}
	return slices.Clone(s.MemberList), nil
}
