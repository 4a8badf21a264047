package view

// Filter is a predicate used to select instances from a [TopologyView].
type Filter func(*InstanceDescription) bool

// LocalInstance is a [Filter] that matches the local instance.
func LocalInstance(i *InstanceDescription) bool {
	return i.IsLocal()
}

// Leaders is a [Filter] that matches cluster leaders.
func Leaders(i *InstanceDescription) bool {
	return i.IsLeader()
}

// InCluster returns a [Filter] that matches members of the given cluster.
func InCluster(id string) Filter {
	return func(i *InstanceDescription) bool {
		return i.ClusterView().ID() == id
	}
}

// WithProperty returns a [Filter] that matches instances that have a property
// with the given name and value.
func WithProperty(name, value string) Filter {
	return func(i *InstanceDescription) bool {
		v, ok := i.Property(name)
		return ok && v == value
	}
}

// Not returns a [Filter] that matches instances that f does not match.
func Not(f Filter) Filter {
	return func(i *InstanceDescription) bool {
		return !f(i)
	}
}

// And returns a [Filter] that matches instances that all of filters match.
func And(filters ...Filter) Filter {
	return func(i *InstanceDescription) bool {
		for _, f := range filters {
			if !f(i) {
				return false
			}
		}
		return true
	}
}

// Or returns a [Filter] that matches instances that any of filters match.
func Or(filters ...Filter) Filter {
	return func(i *InstanceDescription) bool {
		for _, f := range filters {
			if f(i) {
				return true
			}
		}
		return false
	}
}
