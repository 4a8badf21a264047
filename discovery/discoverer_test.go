package discovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/established"
	. "github.com/dogmatiq/topology/internal/test"
	"github.com/dogmatiq/topology/view"
)

func TestDiscoverer(t *testing.T) {
	t.Parallel()

	type dependencies struct {
		Source     *flakySource
		Holder     *Holder
		Log        *eventLog
		Discoverer *Discoverer
	}

	setup := func(t *testing.T) (deps dependencies) {
		deps.Source = &flakySource{}
		deps.Holder = &Holder{}
		deps.Log = &eventLog{}
		deps.Holder.Subscribe(context.Background(), deps.Log)

		deps.Discoverer = &Discoverer{
			InstanceID:    localID,
			Source:        deps.Source,
			Holder:        deps.Holder,
			PollInterval:  10 * time.Millisecond,
			RetryAttempts: 3,
			RetryDelay:    time.Millisecond,
			Telemetry:     NewTelemetryProvider(t),
		}

		return deps
	}

	local := &established.Static{
		Cluster:  "cluster-1",
		Leader:   "instance-b",
		Token:    "1",
		HasToken: true,
		MemberList: []established.Member{
			{ID: "instance-b"},
			{ID: localID, Properties: map[string]string{"color": "red"}},
		},
	}

	remote := &established.Static{
		Cluster: "cluster-2",
		MemberList: []established.Member{
			{ID: "instance-x"},
			{ID: "instance-y"},
		},
	}

	t.Run("func Discover()", func(t *testing.T) {
		t.Parallel()

		t.Run("it publishes a view containing every cluster", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(0, remote, local)

			kind, err := deps.Discoverer.Discover(Context(t))
			if err != nil {
				t.Fatal(err)
			}

			Expect(t, "unexpected change kind", kind, view.TopologyChanged)

			v := deps.Holder.Current()
			if v == nil {
				t.Fatal("expected a view to be published")
			}

			Expect(t, "unexpected local cluster", v.LocalClusterView().ID(), "cluster-1")
			Expect(t, "unexpected local instance", v.LocalInstance().ID(), localID)
			Expect(t, "unexpected leader", v.LocalClusterView().Leader().ID(), "instance-b")
			Expect(
				t,
				"unexpected instances",
				v.Instances().IDs(),
				[]string{localID, "instance-b", "instance-x", "instance-y"},
			)

			if c := v.ClusterView("cluster-2"); c == nil || c.Leader().ID() != "instance-x" {
				t.Fatal("expected the remote cluster to fall back to the first member as leader")
			}
		})

		t.Run("it does not publish anything if the local instance is not established", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(0, remote)

			kind, err := deps.Discoverer.Discover(Context(t))
			if err != nil {
				t.Fatal(err)
			}

			Expect(t, "unexpected change kind", kind, view.NoChange)

			if deps.Holder.Current() != nil {
				t.Fatal("did not expect a view to be published")
			}
		})

		t.Run("it retries when the source fails", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(2, local)

			if _, err := deps.Discoverer.Discover(Context(t)); err != nil {
				t.Fatal(err)
			}

			Expect(t, "unexpected number of reads", deps.Source.Calls(), 3)

			if deps.Holder.Current() == nil {
				t.Fatal("expected a view to be published")
			}
		})

		t.Run("it marks the topology as changing when retries are exhausted", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(0, local)

			if _, err := deps.Discoverer.Discover(Context(t)); err != nil {
				t.Fatal(err)
			}
			prev := deps.Holder.Current()

			deps.Source.Set(3, local)

			_, err := deps.Discoverer.Discover(Context(t))
			if !errors.Is(err, errSource) {
				t.Fatalf("unexpected error: got %v, want %v", err, errSource)
			}

			if !deps.Holder.IsChanging() {
				t.Fatal("expected the holder to be changing")
			}

			if deps.Holder.Current() != prev || prev.IsCurrent() {
				t.Fatal("expected the previous view to remain available but not current")
			}

			Expect(
				t,
				"unexpected events",
				deps.Log.Types(),
				[]EventType{TopologyInit, TopologyChanging},
			)

			// Recovery always produces a topology change.
			deps.Source.Set(0, local)

			kind, err := deps.Discoverer.Discover(Context(t))
			if err != nil {
				t.Fatal(err)
			}

			Expect(t, "unexpected change kind", kind, view.TopologyChanged)
			Expect(
				t,
				"unexpected events",
				deps.Log.Types(),
				[]EventType{TopologyInit, TopologyChanging, TopologyChanged},
			)
		})

		t.Run("it fails the cycle if a cluster view cannot be built", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(
				0,
				local,
				&established.Static{Cluster: "cluster-3"},
			)

			_, err := deps.Discoverer.Discover(Context(t))
			if !errors.Is(err, established.ErrNoMembers) {
				t.Fatalf("unexpected error: got %v, want %v", err, established.ErrNoMembers)
			}

			if deps.Holder.Current() != nil {
				t.Fatal("did not expect a view to be published")
			}
		})

		t.Run("it returns an error rather than panicking when a resource is corrupt", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(
				0,
				local,
				&established.Static{
					MemberList: []established.Member{{ID: "instance-x"}},
				},
			)

			_, err := deps.Discoverer.Discover(Context(t))
			if !errors.Is(err, established.ErrCorruptView) {
				t.Fatalf("unexpected error: got %v, want %v", err, established.ErrCorruptView)
			}
		})

		t.Run("it ignores clusters that conflict with the local cluster", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(
				0,
				local,
				&established.Static{
					Cluster:    "cluster-1",
					MemberList: []established.Member{{ID: "instance-z"}},
				},
				&established.Static{
					Cluster:    "cluster-4",
					MemberList: []established.Member{{ID: "instance-b"}},
				},
			)

			if _, err := deps.Discoverer.Discover(Context(t)); err != nil {
				t.Fatal(err)
			}

			v := deps.Holder.Current()
			Expect(t, "unexpected instances", v.Instances().IDs(), []string{localID, "instance-b"})
			Expect(t, "unexpected cluster count", len(v.ClusterViews()), 1)
		})

		t.Run("it reports property changes", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(0, local)

			if _, err := deps.Discoverer.Discover(Context(t)); err != nil {
				t.Fatal(err)
			}

			changed := *local
			changed.MemberList = []established.Member{
				{ID: "instance-b"},
				{ID: localID, Properties: map[string]string{"color": "blue"}},
			}
			deps.Source.Set(0, &changed)

			kind, err := deps.Discoverer.Discover(Context(t))
			if err != nil {
				t.Fatal(err)
			}

			Expect(t, "unexpected change kind", kind, view.PropertiesChanged)
		})
	})

	t.Run("func Run()", func(t *testing.T) {
		t.Parallel()

		t.Run("it publishes views until the context is canceled", func(t *testing.T) {
			t.Parallel()

			deps := setup(t)
			deps.Source.Set(0, local)

			published := make(chan EventType, 10)
			deps.Holder.Subscribe(
				context.Background(),
				ListenerFunc(func(_ context.Context, e Event) {
					published <- e.Type
				}),
			)

			task := RunInBackground(t, deps.Discoverer.Run).UntilStopped()

			ExpectChannelToReceive(t, published, TopologyInit)

			deps.Source.Set(0, remote, local)

			ExpectChannelToReceive(t, published, TopologyChanging)
			ExpectChannelToReceive(t, published, TopologyChanged)

			task.Stop()
			ExpectChannelToClose(t, task.Done())
		})
	})
}
