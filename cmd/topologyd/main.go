package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/ferrite"
	"github.com/dogmatiq/topology"
	kafkanotify "github.com/dogmatiq/topology/notify/kafka"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	ferrite.Init()

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel.Value())); err != nil {
		return err
	}

	logger := slog.New(
		slog.NewJSONHandler(
			os.Stdout,
			&slog.HandlerOptions{
				Level: level,
			},
		),
	)

	id, ok := instanceID.Value()
	if !ok {
		id = uuid.NewString()
	}

	var props map[string]string
	if v, ok := properties.Value(); ok {
		p, err := parseProperties(v)
		if err != nil {
			return fmt.Errorf("unable to parse TOPOLOGY_PROPERTIES: %w", err)
		}
		props = p
	}

	b, err := newBackend(ctx, id, props, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	options := append(
		b.Options,
		topology.WithInstanceID(id),
		topology.WithProperties(props),
		topology.WithLogger(logger),
		topology.WithPollInterval(pollInterval.Value()),
		topology.WithHeartbeatInterval(heartbeatInterval.Value()),
	)

	if c, ok := clusterID.Value(); ok && !b.HasSource {
		options = append(options, topology.WithClusterID(c))
	}

	g, ctx := errgroup.WithContext(ctx)

	if addr, ok := healthListenAddress.Value(); ok {
		hs := health.NewServer()
		hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		options = append(options, topology.WithListener(healthListener{hs}))

		g.Go(func() error {
			return serveHealth(ctx, addr, hs, logger)
		})
	}

	if brokers, ok := kafkaBrokers.Value(); ok {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(splitList(brokers)...),
			Topic:                  kafkaTopic.Value(),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
		defer w.Close()

		p := &kafkanotify.Publisher{
			Writer: w,
			Key:    id,
			Logger: logger.With(slog.String("component", "kafka")),
		}
		options = append(options, topology.WithListener(p))

		g.Go(func() error {
			return p.Run(ctx)
		})
	}

	a := topology.New(options...)

	logger.Info(
		"starting topology agent",
		slog.String("instance_id", a.InstanceID()),
		slog.String("store", storeDriver.Value()),
	)

	g.Go(func() error {
		return a.Run(ctx)
	})

	return g.Wait()
}
