package view

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// InstanceSet is a read-only set of instances, keyed by instance ID.
type InstanceSet struct {
	m map[string]*InstanceDescription
}

// Len returns the number of instances in the set.
func (s InstanceSet) Len() int {
	return len(s.m)
}

// Contains returns true if the set contains an instance with the given ID.
func (s InstanceSet) Contains(id string) bool {
	_, ok := s.m[id]
	return ok
}

// Get returns the instance with the given ID.
func (s InstanceSet) Get(id string) (*InstanceDescription, bool) {
	i, ok := s.m[id]
	return i, ok
}

// IDs returns the IDs of the instances in the set, in ascending order.
func (s InstanceSet) IDs() []string {
	ids := maps.Keys(s.m)
	slices.Sort(ids)
	return ids
}

// All returns the instances in the set, ordered by ID.
//
// The returned slice is owned by the caller.
func (s InstanceSet) All() []*InstanceDescription {
	all := make([]*InstanceDescription, 0, len(s.m))
	for _, id := range s.IDs() {
		all = append(all, s.m[id])
	}
	return all
}
