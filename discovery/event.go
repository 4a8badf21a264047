package discovery

import (
	"context"
	"fmt"

	"github.com/dogmatiq/topology/view"
)

// EventType is an enumeration of the types of topology event.
type EventType int

const (
	// TopologyInit is sent to a listener when it first receives a view of the
	// topology. OldView is always nil.
	TopologyInit EventType = iota + 1

	// TopologyChanging is sent when the current view has been invalidated and
	// a new view is being established. NewView is always nil.
	TopologyChanging

	// TopologyChanged is sent when the members, leaders or established views
	// of the topology have changed.
	TopologyChanged

	// PropertiesChanged is sent when only the properties of one or more
	// instances have changed.
	PropertiesChanged
)

func (t EventType) String() string {
	switch t {
	case TopologyInit:
		return "TOPOLOGY_INIT"
	case TopologyChanging:
		return "TOPOLOGY_CHANGING"
	case TopologyChanged:
		return "TOPOLOGY_CHANGED"
	case PropertiesChanged:
		return "PROPERTIES_CHANGED"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is a notification about a change to the topology.
type Event struct {
	Type    EventType
	OldView *view.TopologyView
	NewView *view.TopologyView
}

func (e Event) String() string {
	return e.Type.String()
}

// Listener is an interface for handling topology events.
type Listener interface {
	// HandleTopologyEvent handles a topology event.
	//
	// It is called synchronously by the [Holder]. It must not block for long
	// periods and must not subscribe to the holder it is called by.
	HandleTopologyEvent(ctx context.Context, e Event)
}

// ListenerFunc is an adaptor that allows an ordinary function to be used as a
// [Listener].
type ListenerFunc func(ctx context.Context, e Event)

// HandleTopologyEvent calls fn(ctx, e).
func (fn ListenerFunc) HandleTopologyEvent(ctx context.Context, e Event) {
	fn(ctx, e)
}

// eventTypeOf returns the event type that is dispatched for a change of kind k.
func eventTypeOf(k view.ChangeKind) EventType {
	if k == view.PropertiesChanged {
		return PropertiesChanged
	}
	return TopologyChanged
}
