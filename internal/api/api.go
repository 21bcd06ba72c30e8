// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/api/health"
	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/lifecycle"
	"github.com/keen-violet-ibis/rfphub/internal/linkage"
	"github.com/keen-violet-ibis/rfphub/internal/notifier"
	"github.com/keen-violet-ibis/rfphub/internal/notify"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	AccessTokenTTL   time.Duration
	RateLimitPerIP   int
	RateLimitPerUser int
	// SweepInterval is how often the background expiry sweep closes RFPs
	// past their closing date. The read and write guards still close
	// lazily in between sweeps.
	SweepInterval time.Duration
	// Delivery, when set, pushes committed notification rows out-of-band
	// (email, ops webhook). Optional; in-app rows are always written.
	Delivery *notifier.Deliverer
	Verbose  bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10 // login/signup attempts per minute
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 100 // requests per minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	engine        *policy.Engine
	lifecycle     *lifecycle.Manager
	dispatcher    *notify.Dispatcher
	resolver      *authz.Resolver
	linker        *linkage.Resolver
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server and wires the domain services over the
// given storage.
func New(cfg *Config, store storage.Storage) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}

	cfg.SetDefaults()

	dispatcher := notify.NewDispatcher(store)
	if cfg.Delivery != nil {
		dispatcher = dispatcher.WithDelivery(cfg.Delivery)
	}

	s := &Server{
		config:        cfg,
		storage:       store,
		engine:        policy.NewEngine(store),
		lifecycle:     lifecycle.NewManager(store, dispatcher),
		dispatcher:    dispatcher,
		resolver:      authz.NewResolver(store.Users(), store.Claims()),
		linker:        linkage.NewResolver(store),
		healthHandler: health.NewHandler(),
	}
	s.healthHandler.RegisterChecker(health.NewStorageChecker(store))

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and the background expiry sweep and blocks
// until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go s.sweepLoop(ctx)

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// sweepLoop periodically closes RFPs past their closing date so expiry
// does not depend on read traffic.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.lifecycle.CloseExpired(ctx)
			if err != nil {
				log.Printf("expiry sweep: %v", err)
				continue
			}
			if result.UpdatedCount > 0 {
				log.Printf("expiry sweep closed %d RFPs", result.UpdatedCount)
			}
		}
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}
