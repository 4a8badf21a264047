package view

import "errors"

var (
	// ErrNilView is returned when a nil view is passed where a view is
	// required.
	ErrNilView = errors.New("view must not be nil")

	// ErrNilFilter is returned when a nil filter is passed to
	// [TopologyView.FindInstances].
	ErrNilFilter = errors.New("filter must not be nil")
)

// ChangeKind describes the difference between two topology views.
type ChangeKind int

const (
	// NoChange indicates that two views are equivalent.
	NoChange ChangeKind = iota

	// TopologyChanged indicates that the membership, leadership or sync token
	// of at least one cluster differs.
	TopologyChanged

	// PropertiesChanged indicates that the only difference is in the
	// properties of at least one instance.
	PropertiesChanged
)

func (k ChangeKind) String() string {
	switch k {
	case NoChange:
		return "NO_CHANGE"
	case TopologyChanged:
		return "TOPOLOGY_CHANGED"
	case PropertiesChanged:
		return "PROPERTIES_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// CompareTopology compares v to other.
//
// Structural differences take precedence over property differences, so a
// [PropertiesChanged] result means the two views are identical apart from
// instance properties.
func (v *TopologyView) CompareTopology(other *TopologyView) (ChangeKind, error) {
	if other == nil {
		return NoChange, ErrNilView
	}

	if len(v.instances) != len(other.instances) {
		return TopologyChanged, nil
	}

	for id, i := range v.instances {
		o, ok := other.instances[id]
		if !ok {
			return TopologyChanged, nil
		}

		if i.cluster.id != o.cluster.id {
			return TopologyChanged, nil
		}

		if i.leader != o.leader {
			return TopologyChanged, nil
		}
	}

	if len(v.clusters) != len(other.clusters) {
		return TopologyChanged, nil
	}

	for _, c := range v.clusters {
		o := other.ClusterView(c.id)
		if o == nil {
			return TopologyChanged, nil
		}

		if !syncTokensEqual(c, o) {
			return TopologyChanged, nil
		}
	}

	for id, i := range v.instances {
		if !propertiesEqual(i, other.instances[id]) {
			return PropertiesChanged, nil
		}
	}

	return NoChange, nil
}
