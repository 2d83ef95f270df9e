package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes the verifier over HTTP.

Endpoints:

	POST /verify
	  - Request: { address, message | message_hex, signature }
	  - 200 with { valid } when the signature was checked (valid or not)
	  - 422 with { error_kind, error } when the address, witness, sighash or
	    signature encoding is structurally invalid
	  - Definite outcomes are cached; structural errors never are

	POST /witness/decode
	  - Request: { witness } (base64 of a consensus serialized witness stack)
	  - Response: { items } as hex strings

	GET /address?address=...
	  - Response: classified type, network and scriptPubKey

	GET /health
	  - Reports cache health; 503 when the cache is unreachable

Every response carries X-Request-Id, taken from the request when present.
A single token bucket limits the request rate across all clients.
*/
type Server struct {
	verifier   *verifier.Verifier
	cache      persistence.IVerificationCache
	cacheName  string
	limiter    *rate.Limiter
	logger     *zap.Logger
	httpServer *http.Server
	now        func() time.Time
}

// NewServer creates a server. cache may be nil to disable result caching.
func NewServer(cfg *config.ServerConfig, v *verifier.Verifier, cache persistence.IVerificationCache, logger *zap.Logger) *Server {
	s := &Server{
		verifier:  v,
		cache:     cache,
		cacheName: cfg.CacheType.String(),
		logger:    logger,
		now:       time.Now,
	}
	if cache == nil {
		s.cacheName = config.CacheTypeNone.String()
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/verify", s.handleVerify)
	mux.HandleFunc("/witness/decode", s.handleWitnessDecode)
	mux.HandleFunc("/address", s.handleAddress)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRequestID(s.withRateLimit(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server",
			"port", s.httpServer.Addr,
			"provider", s.verifier.Provider().Name(),
			"cache", s.cacheName,
		)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
