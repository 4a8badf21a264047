// Package gossip provides a discovery source that learns cluster membership
// from a gossip protocol, using HashiCorp's memberlist library.
//
// Each node advertises its cluster ID and properties in its node metadata.
// The gossip protocol has no notion of an established leader, so each cluster's
// leader is the member with the lowest ID.
package gossip
