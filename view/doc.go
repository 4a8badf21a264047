// Package view contains the data model that describes the topology of a set of
// clusters, and the logic used to classify the difference between two
// snapshots of that topology.
package view
