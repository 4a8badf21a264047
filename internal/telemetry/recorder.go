package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
)

// Recorder records traces, metrics and logs for a particular subsystem.
type Recorder struct {
	name   string
	tracer trace.Tracer
	meter  metric.Meter
	logger *slog.Logger
	attrs  []Attr

	errors metric.Int64Counter
}

// Logger returns the logger used by the recorder, annotated with the
// recorder's attributes.
func (r *Recorder) Logger() *slog.Logger {
	set := attrSet{Namespace: r.name, Attrs: r.attrs}
	return r.logger.With(set.ForLogger()...)
}

// StartSpan starts a new span.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...Attr,
) (context.Context, *Span) {
	set := attrSet{
		Namespace: r.name,
		Attrs:     append(append([]Attr(nil), r.attrs...), attrs...),
	}

	ctx, span := r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(set.ForSpan()...),
	)

	loggerAttrs := append(
		set.ForLogger(),
		slog.String("span_name", name),
	)

	sctx := span.SpanContext()
	if sctx.HasSpanID() {
		loggerAttrs = append(
			loggerAttrs,
			slog.String("span_id", sctx.SpanID().String()),
		)
	}

	return ctx, &Span{
		recorder: r,
		ctx:      ctx,
		span:     span,
		logger:   r.logger.With(loggerAttrs...),
	}
}

// Int64Counter returns a new Int64Counter instrument.
func (r *Recorder) Int64Counter(name string, options ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := r.meter.Int64Counter(r.name+"."+name, options...)
	if err != nil {
		panic(err)
	}
	return c
}

// Int64UpDownCounter returns a new Int64UpDownCounter instrument.
func (r *Recorder) Int64UpDownCounter(name string, options ...metric.Int64UpDownCounterOption) metric.Int64UpDownCounter {
	c, err := r.meter.Int64UpDownCounter(r.name+"."+name, options...)
	if err != nil {
		panic(err)
	}
	return c
}

// Int64Histogram returns a new Int64Histogram instrument.
func (r *Recorder) Int64Histogram(name string, options ...metric.Int64HistogramOption) metric.Int64Histogram {
	h, err := r.meter.Int64Histogram(r.name+"."+name, options...)
	if err != nil {
		panic(err)
	}
	return h
}
