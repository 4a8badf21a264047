// Package discovery maintains the local instance's view of the topology and
// notifies listeners when it changes.
//
// A [Discoverer] periodically reads established cluster views from a
// [Source], assembles them into a [view.TopologyView] and publishes it to a
// [Holder]. The holder compares each new view against the previous one and
// dispatches [Event] values to its listeners.
package discovery
