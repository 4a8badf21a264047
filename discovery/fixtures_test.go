package discovery_test

import (
	"context"
	"sync"

	. "github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/established"
	"github.com/dogmatiq/topology/view"
)

const localID = "instance-a"

// newView returns a view containing a single cluster with the given members.
// The first member is the leader.
func newView(token string, props map[string]string, ids ...string) *view.TopologyView {
	c := view.NewClusterView("cluster-1", view.WithSyncToken(token))

	for i, id := range ids {
		c.AddInstance(
			view.NewInstanceDescription(c, id, i == 0, id == localID, props),
		)
	}

	v := view.NewTopologyView()
	v.SetLocalClusterView(c)
	return v
}

// eventLog is a [Listener] that records the events it receives.
type eventLog struct {
	m      sync.Mutex
	events []Event
}

func (l *eventLog) HandleTopologyEvent(_ context.Context, e Event) {
	l.m.Lock()
	defer l.m.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Types() []EventType {
	l.m.Lock()
	defer l.m.Unlock()

	var types []EventType
	for _, e := range l.events {
		types = append(types, e.Type)
	}
	return types
}

func (l *eventLog) Last() Event {
	l.m.Lock()
	defer l.m.Unlock()
	return l.events[len(l.events)-1]
}

// flakySource is a [Source] that fails a fixed number of times before
// returning its resources.
type flakySource struct {
	m         sync.Mutex
	failures  int
	calls     int
	resources []established.Resource
}

func (s *flakySource) Snapshot(context.Context) ([]established.Resource, error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, errSource
	}
	return s.resources, nil
}

func (s *flakySource) Set(failures int, resources ...established.Resource) {
	s.m.Lock()
	defer s.m.Unlock()
	s.failures = failures
	s.resources = resources
}

func (s *flakySource) Calls() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.calls
}
