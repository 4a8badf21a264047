package discovery

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/topology/view"
)

// Holder holds the current view of the topology and dispatches events to
// listeners when it changes.
//
// The zero value is ready to use. Views are published by a single producer,
// typically a [Discoverer]; they may be read concurrently.
type Holder struct {
	current atomic.Pointer[view.TopologyView]

	// m serializes publication and dispatch.
	m        sync.Mutex
	changing bool

	subsM sync.Mutex
	subs  []*subscription
}

type subscription struct {
	listener    Listener
	initialized bool
	removed     atomic.Bool
}

// Current returns the most recently published view, or nil if no view has been
// published yet.
//
// Current does not wait for dispatch. A view becomes current before listeners
// are notified of it, so a caller may observe the new view before its event
// has reached every listener. Listeners that call Current while handling an
// event see the view that the event describes as new. Callers that need to act
// in step with dispatch should subscribe a [Listener] instead.
func (h *Holder) Current() *view.TopologyView {
	return h.current.Load()
}

// Subscribe adds l to the holder's listeners.
//
// If a current view has already been published, l immediately receives a
// [TopologyInit] event. Otherwise it receives one when the next view is
// published.
//
// It returns a function that removes the listener. The removal function may be
// called from within the listener itself.
func (h *Holder) Subscribe(ctx context.Context, l Listener) (unsubscribe func()) {
	if l == nil {
		panic("listener must not be nil")
	}

	h.m.Lock()
	defer h.m.Unlock()

	sub := &subscription{listener: l}

	h.subsM.Lock()
	h.subs = append(h.subs, sub)
	h.subsM.Unlock()

	if v := h.current.Load(); v != nil && v.IsCurrent() {
		sub.initialized = true
		l.HandleTopologyEvent(ctx, Event{Type: TopologyInit, NewView: v})
	}

	return func() {
		if !sub.removed.CompareAndSwap(false, true) {
			return
		}

		h.subsM.Lock()
		defer h.subsM.Unlock()

		for i, s := range h.subs {
			if s == sub {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish makes v the current view and notifies listeners of the change, if
// any.
//
// It returns the kind of change between the previous view and v. If there is
// no change, v is discarded and the previous view remains current. The first
// view ever published is reported as [view.TopologyChanged].
//
// If [Holder.MarkChanging] has been called since the last publication, v is
// always treated as a topology change.
func (h *Holder) Publish(ctx context.Context, v *view.TopologyView) (view.ChangeKind, error) {
	if v == nil {
		return view.NoChange, view.ErrNilView
	}

	h.m.Lock()
	defer h.m.Unlock()

	prev := h.current.Load()
	if prev == nil {
		h.current.Store(v)
		h.dispatch(ctx, view.TopologyChanged, nil, v)
		return view.TopologyChanged, nil
	}

	kind, err := prev.CompareTopology(v)
	if err != nil {
		return view.NoChange, err
	}

	if h.changing {
		kind = view.TopologyChanged
	}

	if kind == view.NoChange {
		return view.NoChange, nil
	}

	if kind == view.TopologyChanged && !h.changing {
		prev.SetNotCurrent()
		h.dispatchChanging(ctx, prev)
	}

	h.changing = false
	h.current.Store(v)
	h.dispatch(ctx, kind, prev, v)

	return kind, nil
}

// MarkChanging marks the current view as no longer current and notifies
// listeners that the topology is changing.
//
// It does nothing if no view has been published, or if the topology is already
// marked as changing.
func (h *Holder) MarkChanging(ctx context.Context) {
	h.m.Lock()
	defer h.m.Unlock()

	v := h.current.Load()
	if v == nil || h.changing {
		return
	}

	h.changing = true
	v.SetNotCurrent()
	h.dispatchChanging(ctx, v)
}

// IsChanging returns true if the topology has been marked as changing and no
// new view has been published since.
func (h *Holder) IsChanging() bool {
	h.m.Lock()
	defer h.m.Unlock()
	return h.changing
}

func (h *Holder) dispatchChanging(ctx context.Context, old *view.TopologyView) {
	for _, sub := range h.subscriptions() {
		if sub.initialized && !sub.removed.Load() {
			sub.listener.HandleTopologyEvent(
				ctx,
				Event{Type: TopologyChanging, OldView: old},
			)
		}
	}
}

func (h *Holder) dispatch(
	ctx context.Context,
	kind view.ChangeKind,
	old, new *view.TopologyView,
) {
	for _, sub := range h.subscriptions() {
		if sub.removed.Load() {
			continue
		}

		if !sub.initialized {
			sub.initialized = true
			sub.listener.HandleTopologyEvent(
				ctx,
				Event{Type: TopologyInit, NewView: new},
			)
			continue
		}

		sub.listener.HandleTopologyEvent(
			ctx,
			Event{Type: eventTypeOf(kind), OldView: old, NewView: new},
		)
	}
}

// subscriptions returns the subscriptions that have not been removed, in
// subscription order.
func (h *Holder) subscriptions() []*subscription {
	h.subsM.Lock()
	subs := append([]*subscription(nil), h.subs...)
	h.subsM.Unlock()

	n := 0
	for _, s := range subs {
		if !s.removed.Load() {
			subs[n] = s
			n++
		}
	}

	return subs[:n]
}
