package view_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/dogmatiq/topology/internal/test"
	. "github.com/dogmatiq/topology/view"
	"pgregory.net/rapid"
)

func TestTopologyView_CompareTopology(t *testing.T) {
	t.Parallel()

	abc := []string{localID, "instance-b", "instance-c"}

	t.Run("it returns an error if the other view is nil", func(t *testing.T) {
		t.Parallel()

		v := newTopology(newCluster("cluster-1", "", abc))

		_, err := v.CompareTopology(nil)
		if !errors.Is(err, ErrNilView) {
			t.Fatalf("got %v, want %v", err, ErrNilView)
		}
	})

	t.Run("it reports no change between structural clones", func(t *testing.T) {
		t.Parallel()

		a := newTopology(
			newCluster("cluster-1", "", abc, WithSyncToken("<token>")),
			newCluster("cluster-2", "", []string{"instance-x", "instance-y"}),
		)
		b := a.Clone()

		if k := mustCompare(t, a, b); k != NoChange {
			t.Fatalf("got %s, want %s", k, NoChange)
		}
		if k := mustCompare(t, b, a); k != NoChange {
			t.Fatalf("got %s, want %s", k, NoChange)
		}
	})

	t.Run("it reports a topology change when an instance is added or removed", func(t *testing.T) {
		t.Parallel()

		a := newTopology(newCluster("cluster-1", "", abc))
		b := newTopology(newCluster("cluster-1", "", abc[:2]))

		if k := mustCompare(t, a, b); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
		if k := mustCompare(t, b, a); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
	})

	t.Run("it reports a topology change when an instance is replaced by another", func(t *testing.T) {
		t.Parallel()

		a := newTopology(newCluster("cluster-1", "", abc))
		b := newTopology(newCluster("cluster-1", "", []string{localID, "instance-b", "instance-d"}))

		if k := mustCompare(t, a, b); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
	})

	t.Run("it reports a topology change when an instance moves to another cluster", func(t *testing.T) {
		t.Parallel()

		a := newTopology(
			newCluster("cluster-1", "", abc[:2]),
			newCluster("cluster-2", "", abc[2:]),
		)
		b := newTopology(
			newCluster("cluster-1", "", abc[:2]),
			newCluster("cluster-3", "", abc[2:]),
		)

		if k := mustCompare(t, a, b); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
	})

	t.Run("it reports a topology change in both directions when the leader changes", func(t *testing.T) {
		t.Parallel()

		a := newTopology(newCluster("cluster-1", localID, abc))
		b := newTopology(newCluster("cluster-1", "instance-b", abc))

		if k := mustCompare(t, a, b); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
		if k := mustCompare(t, b, a); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}
	})

	t.Run("sync tokens", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			Desc   string
			A, B   []ClusterViewOption
			Expect ChangeKind
		}{
			{
				"both absent",
				nil,
				nil,
				NoChange,
			},
			{
				"equal",
				[]ClusterViewOption{WithSyncToken("<token>")},
				[]ClusterViewOption{WithSyncToken("<token>")},
				NoChange,
			},
			{
				"different",
				[]ClusterViewOption{WithSyncToken("<token-1>")},
				[]ClusterViewOption{WithSyncToken("<token-2>")},
				TopologyChanged,
			},
			{
				"absent vs present",
				nil,
				[]ClusterViewOption{WithSyncToken("<token>")},
				TopologyChanged,
			},
			{
				"absent vs present empty string",
				nil,
				[]ClusterViewOption{WithSyncToken("")},
				TopologyChanged,
			},
		}

		for _, c := range cases {
			c := c

			t.Run(fmt.Sprintf("it reports %s when the tokens are %s", c.Expect, c.Desc), func(t *testing.T) {
				t.Parallel()

				a := newTopology(newCluster("cluster-1", "", abc, c.A...))
				b := newTopology(newCluster("cluster-1", "", abc, c.B...))

				if k := mustCompare(t, a, b); k != c.Expect {
					t.Fatalf("got %s, want %s", k, c.Expect)
				}
				if k := mustCompare(t, b, a); k != c.Expect {
					t.Fatalf("got %s, want %s", k, c.Expect)
				}
			})
		}
	})

	t.Run("it reports a properties change when only a property value differs", func(t *testing.T) {
		t.Parallel()

		a := newTopology(newCluster("cluster-1", "", abc))
		b := a.Clone()

		i, _ := b.Instance("instance-c")
		i.SetProperty("x", "y")

		if k := mustCompare(t, a, b); k != PropertiesChanged {
			t.Fatalf("got %s, want %s", k, PropertiesChanged)
		}
		if k := mustCompare(t, b, a); k != PropertiesChanged {
			t.Fatalf("got %s, want %s", k, PropertiesChanged)
		}
	})

	t.Run("it reports a properties change when a property is removed", func(t *testing.T) {
		t.Parallel()

		a := newTopology(newCluster("cluster-1", "", abc))
		i, _ := a.Instance("instance-b")
		i.SetProperties(map[string]string{"k1": "v1", "k2": "v2"})

		b := a.Clone()
		i, _ = b.Instance("instance-b")
		i.SetProperties(map[string]string{"k1": "v1"})

		if k := mustCompare(t, a, b); k != PropertiesChanged {
			t.Fatalf("got %s, want %s", k, PropertiesChanged)
		}
	})

	t.Run("it prefers a topology change over a properties change", func(t *testing.T) {
		t.Parallel()

		v1 := newTopology(newCluster("cluster-1", localID, abc))

		t.Log("reassign leadership to instance B")
		v2 := newTopology(newCluster("cluster-1", "instance-b", abc))

		if k := mustCompare(t, v1, v2); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}

		t.Log("set a property on instance C in V2 only")
		c, _ := v2.Instance("instance-c")
		c.SetProperty("x", "y")

		if k := mustCompare(t, v1, v2); k != TopologyChanged {
			t.Fatalf("got %s, want %s", k, TopologyChanged)
		}

		t.Log("revert the leadership change, keeping the property change")
		v3 := newTopology(newCluster("cluster-1", localID, abc))
		c, _ = v3.Instance("instance-c")
		c.SetProperty("x", "y")

		if k := mustCompare(t, v1, v3); k != PropertiesChanged {
			t.Fatalf("got %s, want %s", k, PropertiesChanged)
		}
	})
}

func TestTopologyView_CompareTopology_properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		a := drawTopology(t)
		b := a.Clone()

		Expect(t, "clone", mustCompare(t, a, b), NoChange)
		Expect(t, "clone (reversed)", mustCompare(t, b, a), NoChange)

		ids := b.Instances().IDs()
		id := rapid.SampledFrom(ids).Draw(t, "instance")
		i, _ := b.Instance(id)
		i.SetProperty(
			"<changed>",
			rapid.StringN(0, 8, -1).Draw(t, "value"),
		)

		Expect(t, "property change", mustCompare(t, a, b), PropertiesChanged)
		Expect(t, "property change (reversed)", mustCompare(t, b, a), PropertiesChanged)
	})
}

// drawTopology draws a random topology with between one and three clusters.
func drawTopology(t *rapid.T) *TopologyView {
	v := NewTopologyView()
	clusters := rapid.IntRange(1, 3).Draw(t, "clusters")
	next := 0

	for n := 0; n < clusters; n++ {
		var options []ClusterViewOption
		if rapid.Bool().Draw(t, "has sync token") {
			options = append(options, WithSyncToken(rapid.String().Draw(t, "sync token")))
		}

		c := NewClusterView(fmt.Sprintf("cluster-%d", n), options...)
		members := rapid.IntRange(1, 4).Draw(t, "members")
		leader := rapid.IntRange(0, members-1).Draw(t, "leader")

		for m := 0; m < members; m++ {
			id := fmt.Sprintf("instance-%d", next)
			next++

			props := rapid.MapOfN(
				rapid.StringN(1, 4, -1),
				rapid.StringN(0, 4, -1),
				0, 3,
			).Draw(t, "properties")
			delete(props, "<changed>")

			c.AddInstance(
				NewInstanceDescription(c, id, m == leader, next == 1, props),
			)
		}

		if n == 0 {
			v.SetLocalClusterView(c)
		} else {
			for _, i := range c.Instances() {
				v.AddInstance(i)
			}
		}
	}

	return v
}
