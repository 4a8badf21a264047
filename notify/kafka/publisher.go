// Package kafka publishes topology events to a Kafka topic.
package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/topology/discovery"
	"github.com/segmentio/kafka-go"
	"golang.org/x/exp/slog"
)

// DefaultBufferSize is the default number of events that a [Publisher]
// buffers while waiting for Kafka.
const DefaultBufferSize = 100

// MessageWriter is the subset of [kafka.Writer] used by [Publisher].
type MessageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// Publisher is a [discovery.Listener] that writes topology events to Kafka.
//
// Events are queued by HandleTopologyEvent() and written by Run(), so that
// the discovery process is never blocked by Kafka. If the queue is full the
// event is dropped.
type Publisher struct {
	Writer MessageWriter

	// Key is the message key used for every event, typically the ID of the
	// local instance. It ensures all events from one instance are written to
	// the same partition, in order.
	Key string

	BufferSize int
	Logger     *slog.Logger

	once  sync.Once
	queue chan kafka.Message
}

var _ discovery.Listener = (*Publisher)(nil)

// HandleTopologyEvent queues e for publication.
func (p *Publisher) HandleTopologyEvent(ctx context.Context, e discovery.Event) {
	p.init()

	now := time.Now()

	data, err := marshalEvent(e, now)
	if err != nil {
		p.Logger.ErrorContext(
			ctx,
			"unable to marshal topology event",
			slog.String("event_type", e.Type.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	m := kafka.Message{
		Key:   []byte(p.Key),
		Value: data,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type.String())},
		},
	}

	select {
	case p.queue <- m:
	default:
		p.Logger.WarnContext(
			ctx,
			"dropped topology event, publish queue is full",
			slog.String("event_type", e.Type.String()),
		)
	}
}

// Run writes queued events to Kafka until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	p.init()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-p.queue:
			if err := p.Writer.WriteMessages(ctx, m); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				p.Logger.WarnContext(
					ctx,
					"unable to publish topology event",
					slog.String("event_type", string(m.Headers[0].Value)),
					slog.String("error", err.Error()),
				)
				continue
			}

			p.Logger.DebugContext(
				ctx,
				"published topology event",
				slog.String("event_type", string(m.Headers[0].Value)),
			)
		}
	}
}

func (p *Publisher) init() {
	p.once.Do(func() {
		size := p.BufferSize
		if size <= 0 {
			size = DefaultBufferSize
		}
		p.queue = make(chan kafka.Message, size)
	})
}
