// Package grpcserver exposes the southbound health endpoint the
// data-plane agent probes before trusting the control plane.
package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps the gRPC listener and the standard health service.
type Server struct {
	addr    string
	serving bool
	srv     *grpc.Server
	health  *health.Server
}

// New builds the server; an empty addr disables it. serving=false
// advertises NOT_SERVING, telling agents the data plane is degraded.
func New(addr string, serving bool) *Server {
	return &Server{addr: addr, serving: serving}
}

// Run serves until ctx is cancelled. A nil return on a disabled server
// keeps the supervisor wiring uniform.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.srv = grpc.NewServer()
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.srv, s.health)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		done := make(chan struct{})
		go func() {
			s.srv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.srv.Stop()
		}
	}()

	slog.Info("grpc health server listening", "addr", s.addr)
	return s.srv.Serve(lis)
}
