package instrumentedkv

import (
	"context"

	"github.com/dogmatiq/topology/internal/telemetry"
	"github.com/dogmatiq/topology/persistence/kv"
	"go.opentelemetry.io/otel/metric"
)

type keyspace struct {
	next      kv.Keyspace
	telemetry *telemetry.Recorder

	open       metric.Int64UpDownCounter
	operations metric.Int64Counter
	bytes      metric.Int64Counter
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	ctx, span := ks.telemetry.StartSpan(ctx, "keyspace.get", keyAttr(k))
	defer span.End()

	ks.operations.Add(ctx, 1, operation("get"))

	v, err := ks.next.Get(ctx, k)
	if err != nil {
		span.Error("unable to fetch value", err)
		return nil, err
	}

	ks.bytes.Add(ctx, int64(len(v)), telemetry.ReadDirection)
	span.SetAttributes(telemetry.Int("value_size", len(v)))
	span.Debug("fetched value")

	return v, nil
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	ctx, span := ks.telemetry.StartSpan(ctx, "keyspace.has", keyAttr(k))
	defer span.End()

	ks.operations.Add(ctx, 1, operation("has"))

	ok, err := ks.next.Has(ctx, k)
	if err != nil {
		span.Error("unable to check for presence of key", err)
		return false, err
	}

	span.SetAttributes(telemetry.Bool("key_present", ok))
	span.Debug("checked for presence of key")

	return ok, nil
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	ctx, span := ks.telemetry.StartSpan(
		ctx,
		"keyspace.set",
		keyAttr(k),
		telemetry.Int("value_size", len(v)),
	)
	defer span.End()

	if len(v) == 0 {
		ks.operations.Add(ctx, 1, operation("delete"))
	} else {
		ks.operations.Add(ctx, 1, operation("set"))
	}

	if err := ks.next.Set(ctx, k, v); err != nil {
		span.Error("unable to set key/value pair", err)
		return err
	}

	ks.bytes.Add(ctx, int64(len(k)+len(v)), telemetry.WriteDirection)

	if len(v) == 0 {
		span.Debug("deleted key/value pair")
	} else {
		span.Debug("set key/value pair")
	}

	return nil
}

func (ks *keyspace) Range(ctx context.Context, fn kv.RangeFunc) error {
	ctx, span := ks.telemetry.StartSpan(ctx, "keyspace.range")
	defer span.End()

	ks.operations.Add(ctx, 1, operation("range"))

	var (
		count int
		size  int
		done  = true
	)

	err := ks.next.Range(
		ctx,
		func(ctx context.Context, k, v []byte) (bool, error) {
			count++
			size += len(k) + len(v)

			ok, err := fn(ctx, k, v)
			if !ok {
				done = false
			}
			return ok, err
		},
	)

	ks.bytes.Add(ctx, int64(size), telemetry.ReadDirection)
	span.SetAttributes(
		telemetry.Int("pairs_read", count),
		telemetry.Int("bytes_read", size),
		telemetry.Bool("reached_end", done && err == nil),
	)

	if err != nil {
		span.Error("unable to range over key/value pairs", err)
		return err
	}

	span.Debug("ranged over key/value pairs")

	return nil
}

func (ks *keyspace) Close() error {
	ctx, span := ks.telemetry.StartSpan(context.Background(), "keyspace.close")
	defer span.End()

	if ks.next == nil {
		span.Warn("keyspace is already closed")
		return nil
	}

	next := ks.next
	ks.next = nil
	ks.open.Add(ctx, -1)

	if err := next.Close(); err != nil {
		span.Error("unable to close keyspace", err)
		return err
	}

	span.Debug("closed keyspace")

	return nil
}

// keyAttr returns an attribute describing k. Keys that are printable and
// reasonably short are included verbatim.
func keyAttr(k []byte) telemetry.Attr {
	if len(k) == 0 || len(k) > 128 {
		return telemetry.Int("key_size", len(k))
	}

	for _, octet := range k {
		if octet < ' ' || octet > '~' {
			return telemetry.Int("key_size", len(k))
		}
	}

	return telemetry.String("key", string(k))
}
