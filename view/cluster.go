package view

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ClusterView is the set of instances that are grouped under a single cluster
// ID at a point in time.
type ClusterView struct {
	id           string
	syncToken    string
	hasSyncToken bool
	instances    []*InstanceDescription
}

// ClusterViewOption changes the behavior of a [ClusterView].
type ClusterViewOption func(*ClusterView)

// WithSyncToken is a [ClusterViewOption] that sets the cluster's sync token.
func WithSyncToken(t string) ClusterViewOption {
	return func(c *ClusterView) {
		c.syncToken = t
		c.hasSyncToken = true
	}
}

// NewClusterView returns an empty cluster view with the given ID.
func NewClusterView(id string, options ...ClusterViewOption) *ClusterView {
	if id == "" {
		panic("cluster ID must not be empty")
	}

	c := &ClusterView{id: id}
	for _, opt := range options {
		opt(c)
	}

	return c
}

// ID returns the cluster's ID.
//
// It is stable for the lifetime of the cluster, but is not necessarily unique
// across network partitions.
func (c *ClusterView) ID() string {
	return c.id
}

// SyncToken returns the cluster's sync token, if it has one.
func (c *ClusterView) SyncToken() (string, bool) {
	return c.syncToken, c.hasSyncToken
}

// Leader returns the cluster's leader, or nil if it does not (yet) have one.
func (c *ClusterView) Leader() *InstanceDescription {
	for _, i := range c.instances {
		if i.leader {
			return i
		}
	}
	return nil
}

// Instances returns the cluster's members in a stable order.
func (c *ClusterView) Instances() []*InstanceDescription {
	return slices.Clone(c.instances)
}

// Instance returns the member with the given ID.
func (c *ClusterView) Instance(id string) (*InstanceDescription, bool) {
	for _, i := range c.instances {
		if i.id == id {
			return i, true
		}
	}
	return nil, false
}

// AddInstance appends i to the member list.
//
// It returns false if the cluster already has a member with the same ID.
func (c *ClusterView) AddInstance(i *InstanceDescription) bool {
	if i.cluster != c {
		panic(fmt.Sprintf(
			"instance %q belongs to cluster %q, not %q",
			i.id,
			i.cluster.id,
			c.id,
		))
	}

	if _, ok := c.Instance(i.id); ok {
		return false
	}

	c.instances = append(c.instances, i)
	return true
}

// Validate returns an error if the cluster does not have exactly one leader.
func (c *ClusterView) Validate() error {
	if len(c.instances) == 0 {
		return fmt.Errorf("cluster %q has no members", c.id)
	}

	n := 0
	for _, i := range c.instances {
		if i.leader {
			n++
		}
	}

	if n != 1 {
		return fmt.Errorf("cluster %q has %d leaders, expected exactly 1", c.id, n)
	}

	return nil
}

// clone returns a deep copy of c.
func (c *ClusterView) clone() *ClusterView {
	x := &ClusterView{
		id:           c.id,
		syncToken:    c.syncToken,
		hasSyncToken: c.hasSyncToken,
		instances:    make([]*InstanceDescription, 0, len(c.instances)),
	}

	for _, i := range c.instances {
		x.instances = append(x.instances, i.Clone(x))
	}

	return x
}

func syncTokensEqual(a, b *ClusterView) bool {
	if a.hasSyncToken != b.hasSyncToken {
		return false
	}
	return a.syncToken == b.syncToken
}
