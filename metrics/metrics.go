// Package metrics exposes account activity as prometheus counters and
// serves them on a dedicated listener.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-accounts"
)

// Sink counts activity events by type.
type Sink struct {
	events *prometheus.CounterVec
}

var _ accounts.ActivitySink = (*Sink)(nil)

// NewSink creates the activity counter and registers it with reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_activity_events_total",
				Help: "Total number of account activity events by type",
			},
			[]string{"event"},
		),
	}

	if err := reg.Register(s.events); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register activity metrics")
	}
	return s, nil
}

func (s *Sink) Record(_ context.Context, evt accounts.ActivityEvent) error {
	s.events.WithLabelValues(string(evt.EventType)).Inc()
	return nil
}

// Server serves /metrics for its registry.
type Server struct {
	addr       string
	registry   *prometheus.Registry
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
	logger     accounts.Logger
}

// NewServer creates a registry with the Go and process collectors.
func NewServer(addr string, logger accounts.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		logger:   logger,
	}
}

// Registry is where application metrics should be registered.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start listens and serves in the background. The returned channel reports
// a serve failure and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, goerrors.New("metrics server already running", goerrors.CategoryOperation)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to listen for metrics").
			WithMetadata(map[string]any{"addr": s.addr})
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("metrics server error", "error", serveErr)
			}
			errCh <- serveErr
		}
	}()

	if s.logger != nil {
		s.logger.Info("metrics server started", "addr", listener.Addr().String())
	}
	return errCh, nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to stop metrics server")
		}
	}
	return nil
}

// Addr returns the bound address, empty until started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
