package view

import (
	"fmt"
	"sync/atomic"
)

// TopologyView is the set of all cluster views known to the local instance.
//
// A TopologyView is built by a single goroutine and then published. Once
// published, only its "current" flag may change.
type TopologyView struct {
	clusters   []*ClusterView
	local      *ClusterView
	instances  map[string]*InstanceDescription
	notCurrent atomic.Bool
}

// NewTopologyView returns an empty, current topology view.
func NewTopologyView() *TopologyView {
	return &TopologyView{
		instances: map[string]*InstanceDescription{},
	}
}

// IsCurrent returns true if the view is the authoritative view of the
// topology.
func (v *TopologyView) IsCurrent() bool {
	return !v.notCurrent.Load()
}

// SetNotCurrent marks the view as no longer authoritative.
//
// It returns false if the view was already marked as not current.
func (v *TopologyView) SetNotCurrent() bool {
	return v.notCurrent.CompareAndSwap(false, true)
}

// AddInstance adds i to the view and to the member list of its cluster.
//
// It returns false, without modifying the view, if the view already contains
// an instance with the same ID. If the cluster already has a different member
// with the same ID, that member is added to the view instead of i, and it
// returns false.
func (v *TopologyView) AddInstance(i *InstanceDescription) bool {
	if i == nil {
		panic("instance must not be nil")
	}

	if _, ok := v.instances[i.id]; ok {
		return false
	}

	v.addClusterView(i.cluster)

	added := i.cluster.AddInstance(i)
	if !added {
		i, _ = i.cluster.Instance(i.id)
	}

	if v.instances == nil {
		v.instances = map[string]*InstanceDescription{}
	}
	v.instances[i.id] = i

	return added
}

// SetLocalClusterView designates c as the cluster that contains the local
// instance, and adds c and its members to the view.
func (v *TopologyView) SetLocalClusterView(c *ClusterView) {
	if c == nil {
		panic("cluster view must not be nil")
	}

	if v.local != nil && v.local != c {
		panic(fmt.Sprintf(
			"local cluster view is already set to %q",
			v.local.id,
		))
	}

	v.addClusterView(c)
	v.local = c

	for _, i := range c.instances {
		v.AddInstance(i)
	}
}

func (v *TopologyView) addClusterView(c *ClusterView) {
	for _, x := range v.clusters {
		if x == c {
			return
		}

		if x.id == c.id {
			panic(fmt.Sprintf(
				"view already contains a different cluster view with ID %q",
				c.id,
			))
		}
	}

	v.clusters = append(v.clusters, c)
}

// LocalClusterView returns the cluster that contains the local instance, or
// nil if it has not been set.
func (v *TopologyView) LocalClusterView() *ClusterView {
	return v.local
}

// LocalInstance returns the description of the local instance, or nil if the
// view does not contain it.
func (v *TopologyView) LocalInstance() *InstanceDescription {
	for _, i := range v.instances {
		if i.local {
			return i
		}
	}
	return nil
}

// ClusterViews returns all of the clusters in the topology, in the order they
// were added.
func (v *TopologyView) ClusterViews() []*ClusterView {
	return append([]*ClusterView(nil), v.clusters...)
}

// ClusterView returns the cluster with the given ID, or nil if there is no
// such cluster.
func (v *TopologyView) ClusterView(id string) *ClusterView {
	for _, c := range v.clusters {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Instance returns the instance with the given ID.
func (v *TopologyView) Instance(id string) (*InstanceDescription, bool) {
	i, ok := v.instances[id]
	return i, ok
}

// Instances returns a read-only set of all instances in the topology.
func (v *TopologyView) Instances() InstanceSet {
	return InstanceSet{v.instances}
}

// FindInstances returns the instances that match f.
func (v *TopologyView) FindInstances(f Filter) (InstanceSet, error) {
	if f == nil {
		return InstanceSet{}, ErrNilFilter
	}

	matches := map[string]*InstanceDescription{}
	for id, i := range v.instances {
		if f(i) {
			matches[id] = i
		}
	}

	return InstanceSet{matches}, nil
}

// Clone returns a deep copy of the view.
func (v *TopologyView) Clone() *TopologyView {
	x := NewTopologyView()
	x.notCurrent.Store(v.notCurrent.Load())

	for _, c := range v.clusters {
		cc := c.clone()
		x.clusters = append(x.clusters, cc)

		if c == v.local {
			x.local = cc
		}

		for _, i := range cc.instances {
			x.instances[i.id] = i
		}
	}

	return x
}
