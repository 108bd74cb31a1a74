// Package server wires the local store runtime and gRPC health lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"time"

	localsqlite "github.com/ecomarket/localstore/internal/services/localstore/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the health-check name reported for the store.
const HealthService = "localstore.v1.LocalStore"

// Config holds the server settings resolved by the command.
type Config struct {
	Port           int
	DBPath         string
	StartupTimeout time.Duration
	Logger         *slog.Logger
}

func (c Config) dbPath() string {
	if strings.TrimSpace(c.DBPath) == "" {
		return filepath.Join("data", "localstore.db")
	}
	return c.DBPath
}

// Server exposes store readiness over gRPC health and owns the store
// connector.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	connector  *localsqlite.Connector
}

// New creates a configured server listening on cfg.Port.
func New(cfg Config) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", cfg.Port), cfg)
}

// NewWithAddr creates a configured server for the provided address. The
// store is not opened until Serve.
func NewWithAddr(addr string, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	opts := []localsqlite.Option{localsqlite.WithStartupTimeout(cfg.StartupTimeout)}
	if cfg.Logger != nil {
		opts = append(opts, localsqlite.WithLogger(cfg.Logger))
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		connector:  localsqlite.NewConnector(cfg.dbPath(), opts...),
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server, opens and migrates the store, and reports
// SERVING once the store is ready. A store that cannot be opened stops the
// server and is returned as the error.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("localstore server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	store, err := s.connector.Acquire(ctx)
	if err != nil {
		s.grpcServer.Stop()
		<-serveErr
		return fmt.Errorf("open local store: %w", err)
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		s.grpcServer.Stop()
		<-serveErr
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Printf("localstore ready at schema version %d", version)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.connector != nil {
		if err := s.connector.Close(); err != nil {
			log.Printf("close local store: %v", err)
		}
	}
}
