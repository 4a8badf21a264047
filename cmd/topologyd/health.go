package main

import (
	"context"
	"errors"
	"net"

	"github.com/dogmatiq/topology/discovery"
	"golang.org/x/exp/slog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// healthListener reports the instance as serving while it holds a current
// view of the topology.
type healthListener struct {
	Server *health.Server
}

func (l healthListener) HandleTopologyEvent(_ context.Context, e discovery.Event) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING

	if e.Type != discovery.TopologyChanging && e.NewView != nil && e.NewView.IsCurrent() {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}

	l.Server.SetServingStatus("", status)
}

// serveHealth serves the gRPC health service on addr until ctx is canceled.
func serveHealth(
	ctx context.Context,
	addr string,
	hs *health.Server,
	logger *slog.Logger,
) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		s.GracefulStop()
	}()

	logger.Info(
		"serving gRPC health service",
		slog.String("address", lis.Addr().String()),
	)

	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return ctx.Err()
}
