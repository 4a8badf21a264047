package view_test

import (
	. "github.com/dogmatiq/topology/view"
)

const localID = "instance-a"

// newCluster returns a cluster with the given members, the first of which is
// the leader unless leaderID is non-empty.
func newCluster(
	id, leaderID string,
	memberIDs []string,
	options ...ClusterViewOption,
) *ClusterView {
	if leaderID == "" {
		leaderID = memberIDs[0]
	}

	c := NewClusterView(id, options...)
	for _, m := range memberIDs {
		c.AddInstance(
			NewInstanceDescription(c, m, m == leaderID, m == localID, nil),
		)
	}

	return c
}

// newTopology returns a view containing the given clusters. The first cluster
// is the local cluster.
func newTopology(clusters ...*ClusterView) *TopologyView {
	v := NewTopologyView()
	v.SetLocalClusterView(clusters[0])

	for _, c := range clusters[1:] {
		for _, i := range c.Instances() {
			v.AddInstance(i)
		}
	}

	return v
}

func mustCompare(t interface{ Fatal(...any) }, a, b *TopologyView) ChangeKind {
	k, err := a.CompareTopology(b)
	if err != nil {
		t.Fatal(err)
	}
	return k
}
