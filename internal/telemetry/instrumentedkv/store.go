// Package instrumentedkv provides a [kv.Store] decorator that records traces,
// metrics and logs for each operation.
package instrumentedkv

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dogmatiq/topology/internal/telemetry"
	"github.com/dogmatiq/topology/persistence/kv"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Store is a decorator that adds instrumentation to a [kv.Store].
type Store struct {
	Next      kv.Store
	Telemetry *telemetry.Provider
}

// Open returns the keyspace with the given name.
func (s *Store) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	r := s.Telemetry.Recorder(
		"github.com/dogmatiq/topology/persistence",
		"keyspace",
		telemetry.String("store", fmt.Sprintf("%T", s.Next)),
		telemetry.String("handle", handleID()),
		telemetry.String("name", name),
	)

	ctx, span := r.StartSpan(ctx, "keyspace.open")
	defer span.End()

	next, err := s.Next.Open(ctx, name)
	if err != nil {
		span.Error("unable to open keyspace", err)
		return nil, err
	}

	ks := &keyspace{
		next:      next,
		telemetry: r,
		open: r.Int64UpDownCounter(
			"open",
			metric.WithDescription("The number of keyspaces that are currently open."),
			metric.WithUnit("{keyspace}"),
		),
		operations: r.Int64Counter(
			"operations",
			metric.WithDescription("The number of operations performed on keyspaces."),
			metric.WithUnit("{operation}"),
		),
		bytes: r.Int64Counter(
			"io",
			metric.WithDescription("The cumulative size of the keys and values that have been read and written."),
			metric.WithUnit("By"),
		),
	}

	ks.open.Add(ctx, 1)
	span.Debug("opened keyspace")

	return ks, nil
}

var handleCounter atomic.Uint64

// handleID returns a unique identifier for an open keyspace.
//
// The counter component is for humans, the UUID component is for correlation
// in observability tools.
func handleID() string {
	return fmt.Sprintf(
		"#%d %s",
		handleCounter.Add(1),
		uuid.NewString(),
	)
}

// operation returns a measurement option identifying a keyspace operation.
func operation(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("operation", name))
}
