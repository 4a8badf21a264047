package telemetry

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slog"
)

// Attr is a telemetry attribute.
type Attr struct {
	key   string
	value attribute.Value
}

// String returns a string attribute.
func String[T ~string](k string, v T) Attr {
	return Attr{k, attribute.StringValue(string(v))}
}

// Stringer returns a string attribute. The value is the result of calling
// v.String().
func Stringer(k string, v fmt.Stringer) Attr {
	return String(k, v.String())
}

// Bool returns a boolean attribute.
func Bool[T ~bool](k string, v T) Attr {
	return Attr{k, attribute.BoolValue(bool(v))}
}

// Int returns an integer attribute.
func Int[T constraints.Integer](k string, v T) Attr {
	return Attr{k, attribute.Int64Value(int64(v))}
}

// Duration returns a string attribute containing v in human readable format.
func Duration(k string, v time.Duration) Attr {
	return String(k, v.String())
}

// If conditionally includes an attribute.
func If(cond bool, attr Attr) Attr {
	if cond {
		return attr
	}
	return Attr{}
}

// attrSet is a set of attributes that share a namespace.
type attrSet struct {
	Namespace string
	Attrs     []Attr
}

// ForSpan returns the attributes qualified by the namespace, suitable for
// attaching to a span or span event.
func (s attrSet) ForSpan() []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(s.Attrs))

	for _, a := range s.Attrs {
		if a.key == "" {
			continue
		}

		kvs = append(kvs, attribute.KeyValue{
			Key:   attribute.Key(s.Namespace + "." + a.key),
			Value: a.value,
		})
	}

	return kvs
}

// ForLogger returns the attributes as arguments for an slog.Logger.
func (s attrSet) ForLogger() []any {
	args := make([]any, 0, len(s.Attrs))

	for _, a := range s.Attrs {
		if a.key == "" {
			continue
		}

		args = append(args, slog.Any(a.key, a.value.AsInterface()))
	}

	return args
}
