package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/ingest"
	"github.com/brojonat/solhook/service/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes bounds webhook bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// WebhookProcessor runs webhook bodies through the ingestion pipeline.
// *ingest.Processor implements it.
type WebhookProcessor interface {
	ProcessSolTransfers(ctx context.Context, body []byte) (ingest.Result, error)
	ProcessNFTSales(ctx context.Context, body []byte) (ingest.Result, error)
	ProcessTokenTransfers(ctx context.Context, body []byte) (ingest.Result, error)
	Tokens() *ingest.TokenTable
}

// RecordQuerier reads persisted records. *db.Store implements it.
type RecordQuerier interface {
	ListSolTransfers(ctx context.Context, params db.ListParams) ([]*db.SolTransfer, error)
	ListNFTSales(ctx context.Context, params db.ListParams) ([]*db.NFTSale, error)
	ListTokenTransfers(ctx context.Context, params db.ListParams) ([]*db.TokenTransfer, error)
}

// Options tunes request handling.
type Options struct {
	MaxBodyBytes int64
}

// Server represents the HTTP server for webhook ingestion and record queries.
type Server struct {
	addr      string
	processor WebhookProcessor
	querier   RecordQuerier
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The querier is optional - if nil, the query endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, processor WebhookProcessor, querier RecordQuerier, opts Options, m *metrics.Metrics, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		addr:      addr,
		processor: processor,
		querier:   querier,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.InstrumentRoute(s.metrics, name)(h))
	}

	// Webhook routes
	route("POST /webhooks/sol-transfers", "/webhooks/sol-transfers",
		handleWebhook(s.processor.ProcessSolTransfers, "No whale transfers found", s.opts.MaxBodyBytes, s.logger))
	route("POST /webhooks/nft-sales", "/webhooks/nft-sales",
		handleWebhook(s.processor.ProcessNFTSales, "No NFT sale found", s.opts.MaxBodyBytes, s.logger))
	route("POST /webhooks/token-transfers", "/webhooks/token-transfers",
		handleWebhook(s.processor.ProcessTokenTransfers, "No relevant token transfer found", s.opts.MaxBodyBytes, s.logger))

	// Query routes
	if s.querier != nil {
		route("GET /api/v1/sol-transfers", "/api/v1/sol-transfers",
			handleList(s.querier.ListSolTransfers, "sol_transfers", s.logger))
		route("GET /api/v1/nft-sales", "/api/v1/nft-sales",
			handleList(s.querier.ListNFTSales, "nft_sales", s.logger))
		route("GET /api/v1/token-transfers", "/api/v1/token-transfers",
			handleList(s.querier.ListTokenTransfers, "token_transfers", s.logger))
	} else {
		s.logger.Warn("record querier not configured, query endpoints disabled")
	}
	route("GET /api/v1/tokens", "/api/v1/tokens", handleListTokens(s.processor.Tokens()))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return requestIDMiddleware(recoverMiddleware(corsMiddleware(mux), s.logger))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "max_body_bytes", s.opts.MaxBodyBytes)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type requestIDKey struct{}

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware tags every request with an id, reusing the caller's
// X-Request-ID when one is sent.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// requestLogger returns logger annotated with the request id, if any.
func requestLogger(r *http.Request, logger *slog.Logger) *slog.Logger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return logger.With("request_id", id)
	}
	return logger
}

// recoverMiddleware turns a panic anywhere below it into a 500.
func recoverMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				requestLogger(r, logger).Error("panic while handling request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", v,
				)
				writeText(w, fmt.Sprintf("Webhook processing failed: %v", v), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
