// Package runtime composes configuration, the fixture store, and the HTTP
// server into a controllable lifecycle suitable for CLIs or test-suite
// embedding. It exposes helpers to start, wait, reload, and shutdown the
// fixture, plus an admin sidecar that lets test code inspect and reset
// fixture state between scenarios.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	fixtureconfig "github.com/jwtpizza/api_fixture/pkg/fixture/config"
	fixturemetrics "github.com/jwtpizza/api_fixture/pkg/fixture/metrics"
	fixtureserver "github.com/jwtpizza/api_fixture/pkg/fixture/server"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
	pkglog "github.com/jwtpizza/api_fixture/pkg/log"
)

var (
	// ErrAlreadyRunning indicates the runtime is already serving requests.
	ErrAlreadyRunning = errors.New("runtime already running")
	// ErrNotRunning indicates the runtime has not been started yet.
	ErrNotRunning = errors.New("runtime not running")
	// ErrReloadWhileRunning is returned when attempting to reload while serving.
	ErrReloadWhileRunning = errors.New("cannot reload runtime while it is running")
)

// Runtime orchestrates the fixture server lifecycle based on configuration.
type Runtime struct {
	mu sync.Mutex

	cfg        fixtureconfig.Config
	server     *fixtureserver.Server
	store      *store.Store
	registry   *fixturemetrics.Registry
	reloadFn   func() (fixtureconfig.Config, error)
	adminAllow []*net.IPNet
	bootTime   time.Time
	logger     pkglog.Logger

	baseCtx    context.Context
	cancel     context.CancelFunc
	errCh      chan error
	adminSrv   *http.Server
	adminErrCh chan error
	adminAddr  string
}

// Option customises runtime behaviour.
type Option func(*Runtime)

// WithReloadFunc registers a callback invoked by the admin server when a
// reload is requested.
func WithReloadFunc(fn func() (fixtureconfig.Config, error)) Option {
	return func(r *Runtime) {
		r.reloadFn = fn
	}
}

// WithLogger overrides the logger used by the runtime and underlying server.
func WithLogger(logger pkglog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a runtime from the provided configuration.
func New(cfg fixtureconfig.Config, opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		cfg:        cfg,
		adminAllow: parseAllowList(cfg.Admin.Allow),
		bootTime:   time.Now(),
		logger:     pkglog.Shared(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}

	if rt.logger == nil {
		rt.logger = pkglog.Shared()
	}

	if err := rt.buildComponents(cfg); err != nil {
		return nil, err
	}

	return rt, nil
}

// Start begins serving in the background until the supplied context is
// cancelled or Shutdown is called.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errCh != nil {
		return ErrAlreadyRunning
	}

	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.baseCtx = runCtx
	r.cancel = cancel
	r.errCh = make(chan error, 1)

	go func() {
		err := r.server.Start(runCtx)
		r.errCh <- err
		close(r.errCh)
	}()

	if r.cfg.Admin.Enabled {
		if err := r.startAdminServer(runCtx); err != nil {
			r.logger.Errorw("admin server failed to start", "error", err, "listen", r.cfg.Admin.Listen)
		}
	} else {
		r.adminAddr = ""
	}

	return nil
}

// Wait blocks until the runtime stops and returns the terminal error,
// normalising context cancellation to nil.
func (r *Runtime) Wait() error {
	r.mu.Lock()
	errCh := r.errCh
	adminErrCh := r.adminErrCh
	r.mu.Unlock()

	if errCh == nil {
		return ErrNotRunning
	}

	var err error
	select {
	case err = <-errCh:
	case adminErr := <-adminErrCh:
		if adminErr != nil && !errors.Is(adminErr, http.ErrServerClosed) {
			r.logger.Errorw("admin server stopped with error", "error", adminErr)
		}
		err = <-errCh
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}

	r.mu.Lock()
	r.errCh = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.adminSrv != nil {
		_ = r.adminSrv.Shutdown(context.Background())
	}
	r.adminSrv = nil
	r.adminErrCh = nil
	r.mu.Unlock()

	return err
}

// Run starts the runtime and waits for completion.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	return r.Wait()
}

// Shutdown gracefully stops the runtime if it is running.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil || r.errCh == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if r.cancel != nil {
		r.cancel()
	}

	if r.adminSrv != nil {
		_ = r.adminSrv.Shutdown(ctx)
		r.adminSrv = nil
		r.adminErrCh = nil
	}

	return r.server.Shutdown(ctx)
}

// Reload rebuilds runtime dependencies using the supplied configuration,
// including a fresh fixture store seeded from the new config. The runtime
// must not be running.
func (r *Runtime) Reload(cfg fixtureconfig.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errCh != nil {
		return ErrReloadWhileRunning
	}

	if err := r.buildComponents(cfg); err != nil {
		return err
	}

	r.cfg = cfg
	r.adminAllow = parseAllowList(cfg.Admin.Allow)

	return nil
}

// Config returns the runtime's current configuration.
func (r *Runtime) Config() fixtureconfig.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Store exposes the fixture store, mainly for embedding in test suites.
func (r *Runtime) Store() *store.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store
}

func (r *Runtime) buildComponents(cfg fixtureconfig.Config) error {
	st, err := store.New(cfg.Seed.StoreSeed())
	if err != nil {
		return fmt.Errorf("build fixture store: %w", err)
	}

	var registry *fixturemetrics.Registry
	if cfg.Metrics.Enabled {
		registry = fixturemetrics.NewRegistry()
	}

	r.store = st
	r.registry = registry
	r.server = fixtureserver.New(cfg, st, registry, fixtureserver.WithLogger(r.logger))
	return nil
}

func parseAllowList(entries []string) []*net.IPNet {
	if len(entries) == 0 {
		return nil
	}
	allow := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		e := strings.TrimSpace(entry)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, network, err := net.ParseCIDR(e); err == nil {
				allow = append(allow, network)
			}
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			mask := net.CIDRMask(len(ip)*8, len(ip)*8)
			allow = append(allow, &net.IPNet{IP: ip, Mask: mask})
		}
	}
	return allow
}

func (r *Runtime) startAdminServer(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.cfg.Admin.Listen)
	if err != nil {
		return err
	}

	r.adminAddr = ln.Addr().String()
	mux := http.NewServeMux()
	mux.HandleFunc("/__admin/status", r.adminAuth(r.handleAdminStatus))
	mux.HandleFunc("/__admin/config", r.adminAuth(r.handleAdminConfig))
	mux.HandleFunc("/__admin/reload", r.adminAuth(r.handleAdminReload))
	mux.HandleFunc("/__admin/state", r.adminAuth(r.handleAdminState))
	mux.HandleFunc("/__admin/reset", r.adminAuth(r.handleAdminReset))

	srv := &http.Server{Handler: mux}
	r.adminSrv = srv
	r.adminErrCh = make(chan error, 1)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.adminErrCh <- err
		}
		close(r.adminErrCh)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout.AsDuration())
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

func (r *Runtime) adminAuth(handler func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.authorizeAdmin(w, req) {
			return
		}
		handler(w, req)
	}
}

func (r *Runtime) authorizeAdmin(w http.ResponseWriter, req *http.Request) bool {
	token := strings.TrimSpace(r.cfg.Admin.Token)
	if token != "" {
		authz := req.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") || strings.TrimSpace(authz[7:]) != token {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return false
		}
		return true
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, network := range r.adminAllow {
		if network.Contains(ip) {
			return true
		}
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	return false
}

func (r *Runtime) handleAdminStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	r.mu.Lock()
	stats := r.store.Stats()
	response := map[string]any{
		"pid":           os.Getpid(),
		"uptimeSeconds": time.Since(r.bootTime).Seconds(),
		"version":       r.cfg.Version,
		"admin": map[string]any{
			"enabled": r.cfg.Admin.Enabled,
			"listen":  r.adminAddr,
		},
		"seed": map[string]any{
			"users":      stats.SeededUsers,
			"menuItems":  stats.MenuItems,
			"franchises": stats.Franchises,
		},
	}
	r.mu.Unlock()
	_ = json.NewEncoder(w).Encode(response)
}

func (r *Runtime) handleAdminConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	cfg := r.Config()
	cfg.Token.Secret = ""
	cfg.Admin.Token = ""
	_ = json.NewEncoder(w).Encode(cfg)
}

func (r *Runtime) handleAdminReload(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if r.reloadFn == nil {
		http.Error(w, "runtime reload callback not configured", http.StatusServiceUnavailable)
		return
	}
	if _, err := r.reloadFn(); err != nil {
		http.Error(w, fmt.Sprintf("reload failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "reload requested"})
}

// handleAdminState reports the mutable fixture state so test code can
// assert on sessions, registrations, and deletions without reaching into
// the API surface.
func (r *Runtime) handleAdminState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	r.mu.Lock()
	snap := r.store.Snapshot()
	r.mu.Unlock()
	_ = json.NewEncoder(w).Encode(snap)
}

// handleAdminReset restores the fixture store to its seeded state between
// test scenarios.
func (r *Runtime) handleAdminReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	r.mu.Lock()
	r.store.Reset()
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "reset"})
}

// AdminAddr returns the bound admin server address when enabled.
func (r *Runtime) AdminAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminAddr
}
