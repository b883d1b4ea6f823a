// Package api exposes the ingestion and snapshot HTTP endpoints.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/ingest"
	"github.com/mrbrightsides/stc-analytics/pkg/kb"
	"github.com/mrbrightsides/stc-analytics/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	svc        *ingest.Service
	kb         *kb.KB
	follower   ingest.Follower
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log: log.WithField("component", "api"),
		cfg: cfg,
	}
}

// Start opens the store, loads the knowledge base, and starts the HTTP
// server. The follower starts only after the listener is bound so the
// server is reachable while the first poll pass runs.
func (s *server) Start(ctx context.Context) error {
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	knowledgeBase, err := kb.Load(s.log, s.cfg.KB.Path)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}

	s.kb = knowledgeBase
	s.svc = ingest.NewService(s.log, s.store, &s.cfg.Ingest)

	if s.cfg.Ingest.Follow.Enabled {
		interval, err := s.cfg.FollowInterval()
		if err != nil {
			return err
		}

		follower, err := ingest.NewFollower(
			s.log, s.svc, &s.cfg.Ingest.Follow, interval,
		)
		if err != nil {
			return fmt.Errorf("creating follower: %w", err)
		}

		s.follower = follower
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	if s.follower != nil {
		if err := s.follower.Start(ctx); err != nil {
			return fmt.Errorf("starting follower: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.follower != nil {
		if err := s.follower.Stop(); err != nil {
			s.log.WithError(err).Warn("Follower stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
