package topology_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/dogmatiq/topology"
	"github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/established"
	. "github.com/dogmatiq/topology/internal/test"
	"github.com/dogmatiq/topology/internal/tlog"
	"github.com/dogmatiq/topology/persistence/driver/memory"
	"github.com/dogmatiq/topology/view"
)

// waitFor polls the agent's topology until pred returns true.
func waitFor(t *testing.T, a *Agent, pred func(*view.TopologyView) bool) *view.TopologyView {
	t.Helper()

	ctx := Context(t)

	for {
		if v := a.Topology(); v != nil && v.IsCurrent() && pred(v) {
			return v
		}

		select {
		case <-ctx.Done():
			t.Fatal("topology did not reach the expected state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

var errAdvertise = errors.New("<advertise error>")

// failingAdvertiser is a source that is unable to advertise properties.
type failingAdvertiser struct {
	discovery.StaticSource
}

func (failingAdvertiser) SetProperties(map[string]string) error {
	return errAdvertise
}

func TestAgent(t *testing.T) {
	t.Parallel()

	newAgent := func(t *testing.T, store *memory.KeyValueStore, id string, options ...AgentOption) *Agent {
		return New(
			append(
				[]AgentOption{
					WithInstanceID(id),
					WithClusterID("cluster-1"),
					WithKeyValueStore(store),
					WithLogger(tlog.New(t)),
					WithPollInterval(10 * time.Millisecond),
					WithHeartbeatInterval(50 * time.Millisecond),
				},
				options...,
			)...,
		)
	}

	t.Run("it agrees on membership and leadership with other agents", func(t *testing.T) {
		t.Parallel()

		store := &memory.KeyValueStore{}
		a := newAgent(t, store, "instance-a")
		b := newAgent(t, store, "instance-b")

		RunInBackground(t, a.Run).UntilTestEnds()
		RunInBackground(t, b.Run).UntilTestEnds()

		var views []*view.TopologyView
		for _, agent := range []*Agent{a, b} {
			v := waitFor(t, agent, func(v *view.TopologyView) bool {
				return v.Instances().Len() == 2
			})

			Expect(t, "unexpected local instance", v.LocalInstance().ID(), agent.InstanceID())
			views = append(views, v)
		}

		Expect(
			t,
			"agents are in different clusters",
			views[0].LocalClusterView().ID(),
			views[1].LocalClusterView().ID(),
		)

		Expect(
			t,
			"agents disagree about the leader",
			views[0].LocalClusterView().Leader().ID(),
			views[1].LocalClusterView().Leader().ID(),
		)
	})

	t.Run("it notifies listeners of changes", func(t *testing.T) {
		t.Parallel()

		store := &memory.KeyValueStore{}
		events := make(chan discovery.EventType, 100)

		a := newAgent(
			t,
			store,
			"instance-a",
			WithProperties(map[string]string{"color": "red"}),
			WithListener(discovery.ListenerFunc(func(_ context.Context, e discovery.Event) {
				events <- e.Type
			})),
		)

		RunInBackground(t, a.Run).UntilTestEnds()

		ExpectChannelToReceive(t, events, discovery.TopologyInit)

		v := a.Topology()
		Expect(t, "unexpected cluster", v.LocalClusterView().ID(), "cluster-1")
		Expect(t, "unexpected properties", v.LocalInstance().Properties(), map[string]string{"color": "red"})

		if err := a.SetProperty("color", "blue"); err != nil {
			t.Fatal(err)
		}

		ExpectChannelToReceive(t, events, discovery.PropertiesChanged)

		b := newAgent(t, store, "instance-b")
		RunInBackground(t, b.Run).UntilTestEnds()

		ExpectChannelToReceive(t, events, discovery.TopologyChanging)
		ExpectChannelToReceive(t, events, discovery.TopologyChanged)
	})

	t.Run("it removes instances that stop", func(t *testing.T) {
		t.Parallel()

		store := &memory.KeyValueStore{}
		a := newAgent(t, store, "instance-a")
		b := newAgent(t, store, "instance-b")

		RunInBackground(t, a.Run).UntilTestEnds()
		task := RunInBackground(t, b.Run).UntilStopped()

		waitFor(t, a, func(v *view.TopologyView) bool {
			return v.Instances().Len() == 2
		})

		task.StopAndWait()

		waitFor(t, a, func(v *view.TopologyView) bool {
			return v.Instances().Len() == 1
		})
	})

	t.Run("it can use an alternative source", func(t *testing.T) {
		t.Parallel()

		a := New(
			WithInstanceID("instance-a"),
			WithLogger(tlog.New(t)),
			WithPollInterval(10*time.Millisecond),
			WithSource(discovery.StaticSource{
				&established.Static{
					Cluster:    "cluster-1",
					MemberList: []established.Member{{ID: "instance-a"}, {ID: "instance-b"}},
				},
			}),
		)

		RunInBackground(t, a.Run).UntilTestEnds()

		v := waitFor(t, a, func(*view.TopologyView) bool { return true })
		Expect(t, "unexpected instances", v.Instances().IDs(), []string{"instance-a", "instance-b"})

		if err := a.SetProperty("color", "red"); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("func SetProperty()", func(t *testing.T) {
		t.Parallel()

		t.Run("it updates the advertised properties", func(t *testing.T) {
			t.Parallel()

			a := newAgent(
				t,
				&memory.KeyValueStore{},
				"instance-a",
				WithProperties(map[string]string{"color": "blue"}),
			)

			if err := a.SetProperty("size", "large"); err != nil {
				t.Fatal(err)
			}

			Expect(
				t,
				"unexpected properties",
				a.Properties(),
				map[string]string{"color": "blue", "size": "large"},
			)
		})

		t.Run("it leaves the properties unchanged if the source can not advertise them", func(t *testing.T) {
			t.Parallel()

			a := New(
				WithInstanceID("instance-a"),
				WithProperties(map[string]string{"color": "blue"}),
				WithSource(discovery.StaticSource{}),
			)

			if err := a.SetProperty("color", "red"); err == nil {
				t.Fatal("expected an error")
			}

			Expect(
				t,
				"unexpected properties",
				a.Properties(),
				map[string]string{"color": "blue"},
			)
		})

		t.Run("it leaves the properties unchanged if advertising fails", func(t *testing.T) {
			t.Parallel()

			a := New(
				WithInstanceID("instance-a"),
				WithProperties(map[string]string{"color": "blue"}),
				WithSource(failingAdvertiser{}),
			)

			err := a.SetProperty("color", "red")
			if !errors.Is(err, errAdvertise) {
				t.Fatalf("unexpected error: got %v, want %v", err, errAdvertise)
			}

			Expect(
				t,
				"unexpected properties",
				a.Properties(),
				map[string]string{"color": "blue"},
			)
		})
	})

	t.Run("it panics if both a source and a cluster ID are provided", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()

		New(
			WithClusterID("cluster-1"),
			WithSource(discovery.StaticSource{}),
		)
	})

	t.Run("it generates an instance ID if none is provided", func(t *testing.T) {
		t.Parallel()

		a := New()
		if a.InstanceID() == "" {
			t.Fatal("expected an instance ID")
		}
	})

	t.Run("it loads the cluster ID from the store if none is provided", func(t *testing.T) {
		t.Parallel()

		store := &memory.KeyValueStore{}
		a := New(
			WithInstanceID("instance-a"),
			WithKeyValueStore(store),
			WithLogger(tlog.New(t)),
			WithPollInterval(10*time.Millisecond),
		)

		RunInBackground(t, a.Run).UntilTestEnds()

		v := waitFor(t, a, func(*view.TopologyView) bool { return true })

		if v.LocalClusterView().ID() == "" {
			t.Fatal("expected a generated cluster ID")
		}
	})
}
