// Package server wires the fixture route table, store, and middleware
// into an HTTP server. The route table answers everything under /api/;
// the server adds the operational surface around it (health, readiness,
// metrics, OpenAPI) and the edge middleware chain.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/jwtpizza/api_fixture/internal/openapi"
	"github.com/jwtpizza/api_fixture/internal/platform/health"
	fixtureapi "github.com/jwtpizza/api_fixture/pkg/fixture/api"
	fixtureconfig "github.com/jwtpizza/api_fixture/pkg/fixture/config"
	fixturemetrics "github.com/jwtpizza/api_fixture/pkg/fixture/metrics"
	fixtureproblem "github.com/jwtpizza/api_fixture/pkg/fixture/problem"
	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
	fixturemiddleware "github.com/jwtpizza/api_fixture/pkg/fixture/server/middleware"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
	"github.com/jwtpizza/api_fixture/pkg/fixture/token"
	pkglog "github.com/jwtpizza/api_fixture/pkg/log"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const maxRequestBodyBytes int64 = 1 << 20 // 1 MiB

type readinessReporter interface {
	Readiness(ctx context.Context) health.Report
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithOpenAPIProvider overrides the default OpenAPI document provider.
func WithOpenAPIProvider(provider openapi.DocumentProvider) Option {
	return func(s *Server) {
		s.openapiProvider = provider
	}
}

// WithLogger overrides the logger used by the server. Defaults to the
// shared logger.
func WithLogger(logger pkglog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenIssuer overrides the token issuer, letting tests pin clocks.
func WithTokenIssuer(issuer *token.Issuer) Option {
	return func(s *Server) {
		if issuer != nil {
			s.tokens = issuer
		}
	}
}

// Server coordinates HTTP routes and lifecycle hooks.
type Server struct {
	cfg             fixtureconfig.Config
	store           *store.Store
	router          *http.ServeMux
	httpServer      *http.Server
	handler         http.Handler
	readiness       readinessReporter
	bootTime        time.Time
	metricsHandler  http.Handler
	routeMetrics    *routeMetrics
	fixture         *fixtureapi.API
	table           *route.Table
	tokens          *token.Issuer
	rateLimiter     *rateLimiter
	cors            *cors.Cors
	openapiProvider openapi.DocumentProvider
	logger          pkglog.Logger
}

// New constructs a server answering the fixture routes backed by st.
func New(cfg fixtureconfig.Config, st *store.Store, registry *fixturemetrics.Registry, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:         cfg,
		store:       st,
		router:      mux,
		readiness:   health.NewReporter(st),
		bootTime:    time.Now().UTC(),
		rateLimiter: newRateLimiter(cfg.RateLimit.Window.AsDuration(), cfg.RateLimit.Max),
		cors:        buildCORS(cfg.CORS.AllowedOrigins),
		logger:      pkglog.Shared(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.logger == nil {
		s.logger = pkglog.Shared()
	}
	if s.tokens == nil {
		s.tokens = token.New(cfg.Token)
	}

	if registry != nil && cfg.Metrics.Enabled {
		s.metricsHandler = registry.Handler()
		s.routeMetrics = newRouteMetrics(registry)
	}

	s.fixture = fixtureapi.New(st, s.tokens, s.logger)
	s.table = s.fixture.Routes()

	if s.openapiProvider == nil {
		s.openapiProvider = openapi.NewService(cfg.Version, endpointsFromTable(s.table))
	}

	s.mountRoutes()
	handler := http.Handler(mux)
	handler = fixturemiddleware.BodyLimit(maxRequestBodyBytes, traceIDFromContext, fixtureproblem.Write)(handler)
	if s.rateLimiter != nil {
		handler = fixturemiddleware.RateLimit(
			func(key string, now time.Time) bool { return s.rateLimiter.allow(key, now) },
			clientKey,
			time.Now,
			traceIDFromContext,
			fixtureproblem.Write,
		)(handler)
	}
	if s.cors != nil {
		handler = fixturemiddleware.CORS(s.cors, traceIDFromContext, fixtureproblem.Write)(handler)
	}
	handler = fixturemiddleware.Logging(s.logger, nil, requestIDFromContext, traceIDFromContext, clientAddress)(handler)
	handler = fixturemiddleware.SecurityHeaders()(handler)
	handler = fixturemiddleware.RequestMetadata(ensureRequestIDs)(handler)
	http2Server := &http2.Server{}
	handler = h2c.NewHandler(handler, http2Server)

	s.handler = handler
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler,
	}
	if err := http2.ConfigureServer(s.httpServer, http2Server); err != nil {
		s.logger.Errorw("failed to configure http2 server", "error", err)
	}

	return s
}

// Handler exposes the fully assembled handler chain, mainly for tests and
// embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("http server not initialised")
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("fixture server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout.AsDuration())
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorw("http server shutdown failed", "error", err)
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			s.logger.Errorw("http server stopped with error", "error", err)
		}
		return err
	}
}

// Shutdown gracefully stops the HTTP server using the provided context.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) mountRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/readyz", s.handleReadiness)
	s.router.HandleFunc("/readiness", s.handleReadiness)
	if s.openapiProvider != nil {
		s.router.HandleFunc("/openapi.json", s.handleOpenAPI)
	}
	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}
	s.router.HandleFunc("/api/", s.handleAPI)
}

// handleAPI resolves the fixture route table: first matching rule wins,
// a matched rule without the request's method answers 405, and unmatched
// requests get a problem document instead of silently proxying anywhere.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	rule, handler, params, matched := s.table.Resolve(r)
	if !matched {
		s.routeMetrics.recordUnmatched()
		fixtureproblem.Write(w, http.StatusNotFound, "No Fixture Route",
			fmt.Sprintf("No fixture rule covers %s %s", r.Method, r.URL.Path),
			traceIDFromContext(r.Context()), r.URL.Path)
		return
	}

	track := s.routeMetrics.track(rule.Name, r)
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if handler == nil {
		s.fixture.MethodNotAllowed(rec, r)
	} else {
		handler(rec, r, params)
	}

	track(rec.status, time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, requestID, _ := ensureRequestIDs(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	response := struct {
		Status    string  `json:"status"`
		Uptime    float64 `json:"uptime"`
		Timestamp string  `json:"timestamp"`
		Version   string  `json:"version,omitempty"`
	}{
		Status:    "ok",
		Uptime:    time.Since(s.bootTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var requestID, traceID string
	r, requestID, traceID = ensureRequestIDs(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	report := health.Report{Status: "ready", CheckedAt: time.Now().UTC()}
	if s.readiness != nil {
		report = s.readiness.Readiness(r.Context())
	}

	statusCode := http.StatusOK
	if report.Status != "ready" {
		statusCode = http.StatusServiceUnavailable
	}

	response := struct {
		Status    string         `json:"status"`
		CheckedAt time.Time      `json:"checkedAt"`
		Checks    []health.Check `json:"checks"`
		RequestID string         `json:"requestId,omitempty"`
		TraceID   string         `json:"traceId,omitempty"`
	}{
		Status:    report.Status,
		CheckedAt: report.CheckedAt,
		Checks:    report.Checks,
		RequestID: requestID,
		TraceID:   traceID,
	}

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if s.openapiProvider == nil {
		fixtureproblem.Write(w, http.StatusServiceUnavailable, "OpenAPI Unavailable", "OpenAPI provider not configured", traceIDFromContext(r.Context()), r.URL.Path)
		return
	}

	data, err := s.openapiProvider.Document(r.Context())
	if err != nil {
		traceID := traceIDFromContext(r.Context())
		fixtureproblem.Write(w, http.StatusServiceUnavailable, "OpenAPI Unavailable", err.Error(), traceID, r.URL.Path)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warnw("failed to write openapi response", "error", err)
	}
}

func endpointsFromTable(table *route.Table) []openapi.Endpoint {
	var endpoints []openapi.Endpoint
	for _, rule := range table.Rules() {
		for _, method := range rule.Methods() {
			endpoints = append(endpoints, openapi.Endpoint{
				Method:  method,
				Path:    rule.Template,
				Summary: rule.Summary,
			})
		}
	}
	return endpoints
}

func clientKey(r *http.Request) string {
	addr := clientAddress(r)
	if addr == "" {
		return "global"
	}
	return addr
}

func clientAddress(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func buildCORS(origins []string) *cors.Cors {
	allowAll := len(origins) == 0

	allowed := make(map[string]struct{})
	for _, origin := range origins {
		o := strings.TrimSpace(origin)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
			allowed = nil
			break
		}
		allowed[o] = struct{}{}
	}

	return cors.New(cors.Options{
		AllowedMethods:       []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		ExposedHeaders:       []string{"X-Request-Id", "X-Trace-Id"},
		OptionsSuccessStatus: http.StatusNoContent,
		AllowOriginRequestFunc: func(_ *http.Request, origin string) bool {
			if origin == "" {
				return true
			}
			if allowAll {
				return true
			}
			if allowed == nil {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	})
}
