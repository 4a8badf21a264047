package view

import (
	"golang.org/x/exp/maps"
)

// InstanceDescription describes a single member of a [ClusterView].
//
// The identity fields are fixed at construction. The properties may be
// replaced while the view is being built, but must not be modified once the
// enclosing [TopologyView] has been published.
type InstanceDescription struct {
	id      string
	leader  bool
	local   bool
	cluster *ClusterView
	props   map[string]string
}

// NewInstanceDescription returns a description of the instance with the given
// ID that is a member of c.
//
// The instance is not added to c's member list; use [TopologyView.AddInstance]
// or [ClusterView.AddInstance].
func NewInstanceDescription(
	c *ClusterView,
	id string,
	isLeader, isLocal bool,
	props map[string]string,
) *InstanceDescription {
	if c == nil {
		panic("cluster view must not be nil")
	}
	if id == "" {
		panic("instance ID must not be empty")
	}

	return &InstanceDescription{
		id:      id,
		leader:  isLeader,
		local:   isLocal,
		cluster: c,
		props:   maps.Clone(props),
	}
}

// ID returns the instance's stable identifier.
func (i *InstanceDescription) ID() string {
	return i.id
}

// IsLeader returns true if the instance is the leader of its cluster.
func (i *InstanceDescription) IsLeader() bool {
	return i.leader
}

// IsLocal returns true if the instance is the one that produced the view.
func (i *InstanceDescription) IsLocal() bool {
	return i.local
}

// ClusterView returns the cluster that the instance belongs to.
func (i *InstanceDescription) ClusterView() *ClusterView {
	return i.cluster
}

// Properties returns a copy of the instance's properties.
func (i *InstanceDescription) Properties() map[string]string {
	p := maps.Clone(i.props)
	if p == nil {
		p = map[string]string{}
	}
	return p
}

// Property returns the value of the property with the given name.
func (i *InstanceDescription) Property(name string) (string, bool) {
	v, ok := i.props[name]
	return v, ok
}

// SetProperty sets a single property. It is not safe for concurrent use.
func (i *InstanceDescription) SetProperty(name, value string) {
	if i.props == nil {
		i.props = map[string]string{}
	}
	i.props[name] = value
}

// SetProperties replaces all of the instance's properties.
func (i *InstanceDescription) SetProperties(props map[string]string) {
	i.props = maps.Clone(props)
}

// Clone returns a copy of the instance that belongs to c.
func (i *InstanceDescription) Clone(c *ClusterView) *InstanceDescription {
	return NewInstanceDescription(c, i.id, i.leader, i.local, i.props)
}

func (i *InstanceDescription) String() string {
	return i.id
}

// propertiesEqual returns true if a and b have exactly the same properties.
func propertiesEqual(a, b *InstanceDescription) bool {
	return maps.Equal(a.props, b.props)
}
