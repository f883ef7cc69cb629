package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes a registry on a pull-scrape HTTP endpoint. Its
// lifecycle is independent of the generator's: dashboards keep scraping
// while runs start and stop.
type Server struct {
	srv      *http.Server
	listener net.Listener
	log      *log.Entry
}

// NewServer creates a scrape server for the given gatherer on addr.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		gatherer,
		promhttp.HandlerOpts{DisableCompression: true},
	))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithField("component", "metrics-server"),
	}
}

// Start binds the listener and begins serving in the background. The
// bind happens synchronously so address errors surface to the caller.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.WithField("addr", listener.Addr().String()).Info("serving metrics")

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

// Addr returns the bound address, useful when Start was given port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight scrapes and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
