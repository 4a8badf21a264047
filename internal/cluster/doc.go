// Package cluster maintains cluster membership in a key/value store.
//
// Each instance registers itself in a registry keyspace and renews the
// registration periodically. Establishers turn the live registrations into an
// "established view" record per cluster, which is what the discovery process
// reads to build the topology.
package cluster

const (
	// RegistryKeyspace is the name of the keyspace that contains instance
	// registrations.
	RegistryKeyspace = "topology.registry"

	// ViewKeyspace is the name of the keyspace that contains the established
	// view of each cluster.
	ViewKeyspace = "topology.views"

	// MetaKeyspace is the name of the keyspace that contains cluster-wide
	// metadata, such as the persisted cluster ID.
	MetaKeyspace = "topology.meta"
)
