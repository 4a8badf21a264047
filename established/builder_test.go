package established_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	. "github.com/dogmatiq/topology/established"
	"github.com/dogmatiq/topology/view"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slog"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	setup := func() (*Builder, *bytes.Buffer) {
		buf := &bytes.Buffer{}
		return &Builder{
			Logger: slog.New(slog.NewTextHandler(buf, nil)),
		}, buf
	}

	members := func(ids ...string) []Member {
		var list []Member
		for _, id := range ids {
			list = append(list, Member{ID: id})
		}
		return list
	}

	t.Run("it returns an error if there is no resource", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		_, err := b.BuildClusterView(nil, "a")
		if !errors.Is(err, ErrNoViewResource) {
			t.Fatalf("got %v, want %v", err, ErrNoViewResource)
		}
	})

	t.Run("it returns an error if there is no member data", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		_, err := b.BuildClusterView(&Static{Cluster: "cluster-1"}, "a")
		if !errors.Is(err, ErrNoMembers) {
			t.Fatalf("got %v, want %v", err, ErrNoMembers)
		}
	})

	t.Run("it returns an error if the member list is empty", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		_, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: []Member{},
			},
			"a",
		)
		if !errors.Is(err, ErrNoMembers) {
			t.Fatalf("got %v, want %v", err, ErrNoMembers)
		}
	})

	t.Run("it returns an error if the cluster ID is empty", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		_, err := b.BuildClusterView(
			&Static{
				MemberList: members("a"),
			},
			"a",
		)
		if !errors.Is(err, ErrCorruptView) {
			t.Fatalf("got %v, want %v", err, ErrCorruptView)
		}
	})

	t.Run("it ignores members with an empty ID", func(t *testing.T) {
		t.Parallel()

		b, logs := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: members("b", "", "a"),
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		var ids []string
		for _, i := range c.Instances() {
			ids = append(ids, i.ID())
		}

		if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
			t.Fatal(diff)
		}

		if !strings.Contains(logs.String(), "empty ID") {
			t.Fatalf("expected an error to be logged, got %q", logs.String())
		}
	})

	t.Run("it returns an error if every member has an empty ID", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		_, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: members("", ""),
			},
			"a",
		)
		if !errors.Is(err, ErrNoMembers) {
			t.Fatalf("got %v, want %v", err, ErrNoMembers)
		}
	})

	t.Run("it sorts members by ID", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: members("c", "a", "b"),
			},
			"b",
		)
		if err != nil {
			t.Fatal(err)
		}

		var ids []string
		for _, i := range c.Instances() {
			ids = append(ids, i.ID())
		}

		if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
			t.Fatal(diff)
		}

		i, _ := c.Instance("b")
		if !i.IsLocal() {
			t.Fatal("expected member b to be local")
		}
	})

	t.Run("it uses the recorded leader", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				Leader:     "c",
				MemberList: members("a", "b", "c"),
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		if got := c.Leader().ID(); got != "c" {
			t.Fatalf("got leader %q, want %q", got, "c")
		}
		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("it falls back to the first member when no leader is recorded", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: members("c", "b"),
			},
			"c",
		)
		if err != nil {
			t.Fatal(err)
		}

		if got := c.Leader().ID(); got != "b" {
			t.Fatalf("got leader %q, want %q", got, "b")
		}
	})

	t.Run("it falls back to the first member when the recorded leader is not a member", func(t *testing.T) {
		t.Parallel()

		b, logs := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				Leader:     "z",
				MemberList: members("b", "a"),
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		if got := c.Leader().ID(); got != "a" {
			t.Fatalf("got leader %q, want %q", got, "a")
		}

		if !strings.Contains(logs.String(), "recorded leader is not a member") {
			t.Fatalf("expected a warning, got %q", logs.String())
		}
	})

	t.Run("it keeps the first leader when more than one member claims leadership", func(t *testing.T) {
		t.Parallel()

		b, logs := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster: "cluster-1",
				MemberList: []Member{
					{ID: "c", Leader: true},
					{ID: "a"},
					{ID: "b", Leader: true},
				},
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		if got := c.Leader().ID(); got != "b" {
			t.Fatalf("got leader %q, want %q", got, "b")
		}

		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}

		if !strings.Contains(logs.String(), "more than one leader") {
			t.Fatalf("expected an error to be logged, got %q", logs.String())
		}
	})

	t.Run("it prefers the recorded leader over a member that claims leadership", func(t *testing.T) {
		t.Parallel()

		b, logs := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster: "cluster-1",
				Leader:  "c",
				MemberList: []Member{
					{ID: "a", Leader: true},
					{ID: "c"},
				},
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		if got := c.Leader().ID(); got != "c" {
			t.Fatalf("got leader %q, want %q", got, "c")
		}

		if !strings.Contains(logs.String(), "more than one leader") {
			t.Fatalf("expected an error to be logged, got %q", logs.String())
		}
	})

	t.Run("it copies the sync token and properties", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:  "cluster-1",
				Token:    "<token>",
				HasToken: true,
				MemberList: []Member{
					{ID: "a", Properties: map[string]string{"k": "v"}},
				},
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		token, ok := c.SyncToken()
		if !ok || token != "<token>" {
			t.Fatalf("got sync token %q (%t), want %q", token, ok, "<token>")
		}

		i, _ := c.Instance("a")
		if diff := cmp.Diff(map[string]string{"k": "v"}, i.Properties()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it produces a view that can be added to a topology", func(t *testing.T) {
		t.Parallel()

		b, _ := setup()

		c, err := b.BuildClusterView(
			&Static{
				Cluster:    "cluster-1",
				MemberList: members("a", "b"),
			},
			"a",
		)
		if err != nil {
			t.Fatal(err)
		}

		v := view.NewTopologyView()
		v.SetLocalClusterView(c)

		if got := v.LocalInstance().ID(); got != "a" {
			t.Fatalf("got %q, want %q", got, "a")
		}
	})
}
