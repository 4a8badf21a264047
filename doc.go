// Package topology discovers the instances of a distributed system, agrees on
// the membership and leader of each cluster, and notifies interested
// components when the topology changes.
//
// An [Agent] runs on each instance. By default agents coordinate via a shared
// key/value store. Alternatively, an agent can be given any other
// [discovery.Source], such as the gossip source in the gossip package.
package topology
