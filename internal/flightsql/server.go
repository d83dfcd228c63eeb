// Package flightsql exposes a store over Arrow Flight SQL. Statement results
// are streamed as the typed records produced by the bridge.
package flightsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	arrowflightsql "github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"google.golang.org/grpc"
	grpcHealth "google.golang.org/grpc/health"
	grpcHealthV1 "google.golang.org/grpc/health/grpc_health_v1"

	"polite/pkg/frame"
)

// Server is a Flight SQL listener backed by a QueryExecutor.
type Server struct {
	addr   string
	driver string
	logger *slog.Logger
	query  QueryExecutor

	mu         sync.Mutex
	ln         net.Listener
	grpcServer *grpc.Server
	health     *grpcHealth.Server
	queries    *queryServer
	wg         sync.WaitGroup
}

// NewServer returns a server listening on addr once started. driver selects
// the catalog used for table listings.
func NewServer(addr, driver string, logger *slog.Logger, query QueryExecutor) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if query == nil {
		query = func(_ context.Context, _ string) (*frame.Frame, error) {
			return nil, errors.New("flight sql query executor is not configured")
		}
	}
	return &Server{addr: addr, driver: driver, logger: logger, query: query}
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("flight sql listener already started")
	}

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen flight sql: %w", err)
	}
	queries := newQueryServer(s.driver, s.logger, s.query)
	grpcSrv := grpc.NewServer()
	arrowflight.RegisterFlightServiceServer(grpcSrv, arrowflightsql.NewFlightServer(queries))
	healthSrv := grpcHealth.NewServer()
	healthSrv.SetServingStatus("", grpcHealthV1.HealthCheckResponse_SERVING)
	grpcHealthV1.RegisterHealthServer(grpcSrv, healthSrv)

	s.ln = ln
	s.grpcServer = grpcSrv
	s.health = healthSrv
	s.queries = queries
	s.wg.Add(1)
	go s.serveLoop()
	s.logger.Info("flight sql listener started", "addr", ln.Addr().String(), "driver", s.driver)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting calls and waits for in-flight streams, forcing a
// stop after five seconds or when ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	grpcSrv := s.grpcServer
	health := s.health
	queries := s.queries
	s.ln = nil
	s.grpcServer = nil
	s.health = nil
	s.queries = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	defer queries.releaseTickets()

	if health != nil {
		health.Shutdown()
	}
	if grpcSrv != nil {
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			grpcSrv.Stop()
			return fmt.Errorf("flight sql shutdown: %w", ctx.Err())
		case <-time.After(5 * time.Second):
			grpcSrv.Stop()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flight sql shutdown wait: %w", ctx.Err())
	}
}

func (s *Server) serveLoop() {
	defer s.wg.Done()

	s.mu.Lock()
	ln := s.ln
	grpcSrv := s.grpcServer
	s.mu.Unlock()

	if ln == nil || grpcSrv == nil {
		return
	}
	if err := grpcSrv.Serve(ln); err != nil {
		s.logger.Debug("flight sql gRPC server stopped", "error", err)
	}
}
