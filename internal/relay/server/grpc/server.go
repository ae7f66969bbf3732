package grpc

import (
	"context"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/seawatch-io/seawatch/internal/pkg/middleware/grpc"
	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/options"
)

// ServiceName is the health service reflecting the relay's readiness checks.
// The empty service name reports liveness.
const ServiceName = "seawatch.relay"

const checkInterval = 5 * time.Second

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Server exposes grpc.health.v1.Health for orchestrators that probe over gRPC.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
	checks  map[string]Check
	logger  log.Logger
}

func NewServer(opts *options.GrpcOptions, checks map[string]Check) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcmw.UnaryServerTimeoutInterceptor(opts.Timeout)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	return &Server{
		server:  s,
		health:  hs,
		options: opts,
		checks:  checks,
		logger:  log.WithName("grpc"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve runs the server on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("Starting gRPC Server", "addr", lis.Addr().String())

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.refresh(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.refresh(ctx)
		case <-ctx.Done():
			s.health.Shutdown()
			s.server.GracefulStop()
			return nil
		}
	}
}

// refresh runs the readiness checks and publishes the result on ServiceName.
func (s *Server) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, checkInterval/2)
	defer cancel()

	var failed []string
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed = append(failed, name)
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		sort.Strings(failed)
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Debug("Readiness checks failing", "checks", failed)
	}
	s.health.SetServingStatus(ServiceName, status)
}
