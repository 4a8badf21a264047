package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
)

// Span represents a single named and timed operation of a workflow.
type Span struct {
	recorder *Recorder
	ctx      context.Context
	span     trace.Span
	logger   *slog.Logger
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}

// SetAttributes sets attributes on the span.
func (s *Span) SetAttributes(attrs ...Attr) {
	set := attrSet{
		Namespace: s.recorder.name,
		Attrs:     attrs,
	}

	s.span.SetAttributes(set.ForSpan()...)
}

// Debug logs a debug-level event.
func (s *Span) Debug(message string, attrs ...Attr) {
	s.log(slog.LevelDebug, message, attrs)
}

// Info logs an info-level event.
func (s *Span) Info(message string, attrs ...Attr) {
	s.log(slog.LevelInfo, message, attrs)
}

// Warn logs a warning-level event.
func (s *Span) Warn(message string, attrs ...Attr) {
	s.log(slog.LevelWarn, message, attrs)
}

// Error logs an error-level event, marks the span as failed and increments the
// recorder's error counter.
func (s *Span) Error(message string, err error, attrs ...Attr) {
	set := attrSet{
		Namespace: s.recorder.name,
		Attrs:     attrs,
	}

	s.span.SetStatus(codes.Error, err.Error())
	s.span.RecordError(err, trace.WithAttributes(set.ForSpan()...))
	s.recorder.errors.Add(s.ctx, 1)

	if !s.logger.Enabled(s.ctx, slog.LevelError) {
		return
	}

	s.logger.ErrorContext(
		s.ctx,
		message,
		append(
			set.ForLogger(),
			slog.String("error", err.Error()),
		)...,
	)
}

func (s *Span) log(level slog.Level, message string, attrs []Attr) {
	if !s.logger.Enabled(s.ctx, level) {
		return
	}

	set := attrSet{
		Namespace: s.recorder.name,
		Attrs:     attrs,
	}

	s.span.AddEvent(message, trace.WithAttributes(set.ForSpan()...))
	s.logger.Log(s.ctx, level, message, set.ForLogger()...)
}
