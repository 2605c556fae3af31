// Package config loads, validates, and normalises fixture server
// configuration.
//
// It supports layered YAML files with environment variable overrides so a
// test harness can point PIZZAFIX_CONFIG at a scenario file while CI tweaks
// individual knobs through the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

const (
	defaultPort            = 8080
	defaultShutdownTimeout = 15 * time.Second
	defaultRateLimitWindow = 60 * time.Second
	defaultRateLimitMax    = 600
	defaultMetricsEnabled  = true
	defaultAdminListen     = "127.0.0.1:8081"
	defaultSessionToken    = "abcdef"
	defaultOrderToken      = "eyJpYXQ"
	defaultTokenTTL        = time.Hour

	defaultConfigEnvVar = "PIZZAFIX_CONFIG"

	envPort               = "PORT"
	envShutdownTimeout    = "SHUTDOWN_TIMEOUT_MS"
	envGitSHA             = "GIT_SHA"
	envCorsAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	envRateLimitWindow    = "RATE_LIMIT_WINDOW_MS"
	envRateLimitMax       = "RATE_LIMIT_MAX"
	envMetricsEnabled     = "METRICS_ENABLED"
	envAdminEnabled       = "ADMIN_ENABLED"
	envAdminListen        = "ADMIN_LISTEN"
	envAdminToken         = "ADMIN_TOKEN"
	envTokenSecret        = "TOKEN_SECRET"
	envTokenIssuer        = "TOKEN_ISSUER"
	envTokenTTL           = "TOKEN_TTL_MS"
	envSessionToken       = "SESSION_TOKEN"
	envInitialUserEmail   = "INITIAL_USER_EMAIL"
)

// Config captures runtime configuration for the fixture server.
type Config struct {
	Version   string          `yaml:"version"`
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Admin     AdminConfig     `yaml:"admin"`
	Token     TokenConfig     `yaml:"token"`
	Seed      SeedConfig      `yaml:"seed"`
}

// HTTPConfig configures listener behaviour.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// CORSConfig captures allowed origins. Empty means allow all, which suits
// a fixture answering arbitrary test runners.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// RateLimitConfig captures throttling applied at the server edge.
type RateLimitConfig struct {
	Window Duration `yaml:"window"`
	Max    int      `yaml:"max"`
}

// MetricsConfig toggles metrics exposure.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AdminConfig controls the admin sidecar used to inspect and reset
// fixture state between test cases.
type AdminConfig struct {
	Enabled bool     `yaml:"enabled"`
	Listen  string   `yaml:"listen"`
	Token   string   `yaml:"token"`
	Allow   []string `yaml:"allow"`
}

// TokenConfig controls the tokens handed out by auth and order routes.
// With no secret the fixed fixture strings are returned; with a secret the
// server mints real HS256 tokens instead.
type TokenConfig struct {
	Session string   `yaml:"session"`
	Order   string   `yaml:"order"`
	Secret  string   `yaml:"secret"`
	Issuer  string   `yaml:"issuer"`
	TTL     Duration `yaml:"ttl"`
}

// SeedUser pairs a seed user with its password in YAML form.
type SeedUser struct {
	model.User `yaml:",inline"`
	Password   string `yaml:"password"`
}

// SeedConfig overrides the fixture data a server starts with. Zero-value
// fields keep the built-in defaults.
type SeedConfig struct {
	InitialUserEmail string               `yaml:"initialUserEmail"`
	Users            []SeedUser           `yaml:"users"`
	Menu             []model.Pizza        `yaml:"menu"`
	FranchiseList    *model.FranchiseList `yaml:"franchiseList"`
	FranchisesByID   []model.Franchise    `yaml:"franchisesById"`
	OrderHistory     *model.OrderHistory  `yaml:"orderHistory"`
}

// StoreSeed converts the YAML seed section into a store seed.
func (s SeedConfig) StoreSeed() store.Seed {
	seed := store.Seed{
		InitialUserEmail: s.InitialUserEmail,
		Menu:             s.Menu,
		FranchiseList:    s.FranchiseList,
		FranchisesByID:   s.FranchisesByID,
		OrderHistory:     s.OrderHistory,
	}
	for _, u := range s.Users {
		seed.Users = append(seed.Users, store.SeededUser{Password: u.Password, User: u.User})
	}
	return seed
}

// Duration is a YAML-friendly wrapper over time.Duration supporting numeric
// millisecond inputs.
type Duration time.Duration

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.AsDuration().String(), nil
}

// UnmarshalYAML decodes scalar duration values from either Go duration
// strings or millisecond integers.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}

	switch value.Kind {
	case yaml.ScalarNode:
		txt := strings.TrimSpace(value.Value)
		if txt == "" {
			*d = Duration(0)
			return nil
		}
		if ms, err := strconv.Atoi(txt); err == nil {
			if ms < 0 {
				return fmt.Errorf("duration must be non-negative, got %d", ms)
			}
			*d = Duration(time.Duration(ms) * time.Millisecond)
			return nil
		}
		parsed, err := time.ParseDuration(txt)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", txt, err)
		}
		if parsed < 0 {
			return fmt.Errorf("duration must be non-negative, got %s", parsed)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// DurationFrom constructs a Duration from a time.Duration.
func DurationFrom(d time.Duration) Duration {
	return Duration(d)
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Version: os.Getenv(envGitSHA),
		HTTP: HTTPConfig{
			Port:            defaultPort,
			ShutdownTimeout: DurationFrom(defaultShutdownTimeout),
		},
		CORS: CORSConfig{
			AllowedOrigins: nil,
		},
		RateLimit: RateLimitConfig{
			Window: DurationFrom(defaultRateLimitWindow),
			Max:    defaultRateLimitMax,
		},
		Metrics: MetricsConfig{
			Enabled: defaultMetricsEnabled,
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  defaultAdminListen,
		},
		Token: TokenConfig{
			Session: defaultSessionToken,
			Order:   defaultOrderToken,
			TTL:     DurationFrom(defaultTokenTTL),
		},
	}
}

// Option customises the load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	paths     []string
	lookupEnv func(string) (string, bool)
}

// WithPath adds a YAML config path to attempt loading.
func WithPath(path string) Option {
	return func(o *loaderOptions) {
		if strings.TrimSpace(path) != "" {
			o.paths = append(o.paths, path)
		}
	}
}

// WithLookupEnv overrides the environment lookup function (useful for tests).
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *loaderOptions) {
		o.lookupEnv = fn
	}
}

// Load builds a Config from defaults, YAML files, and environment overrides
// (in that order).
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		lookupEnv: os.LookupEnv,
	}
	if envPath := strings.TrimSpace(os.Getenv(defaultConfigEnvVar)); envPath != "" {
		options.paths = append(options.paths, envPath)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	cfg := Default()

	for _, path := range options.paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, options.lookupEnv); err != nil {
		return cfg, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if val, ok := lookup(envPort); ok && strings.TrimSpace(val) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid %s value: %s", envPort, val)
		}
		cfg.HTTP.Port = port
	}

	if val, ok := lookup(envShutdownTimeout); ok && strings.TrimSpace(val) != "" {
		timeout, err := parsePositiveDurationMillis(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envShutdownTimeout, err)
		}
		cfg.HTTP.ShutdownTimeout = DurationFrom(timeout)
	}

	if val, ok := lookup(envGitSHA); ok && strings.TrimSpace(val) != "" {
		cfg.Version = strings.TrimSpace(val)
	}

	if val, ok := lookup(envCorsAllowedOrigins); ok && strings.TrimSpace(val) != "" {
		cfg.CORS.AllowedOrigins = splitAndTrim(val)
	}

	if val, ok := lookup(envRateLimitWindow); ok && strings.TrimSpace(val) != "" {
		window, err := parsePositiveDurationMillis(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envRateLimitWindow, err)
		}
		cfg.RateLimit.Window = DurationFrom(window)
	}

	if val, ok := lookup(envRateLimitMax); ok && strings.TrimSpace(val) != "" {
		max, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || max <= 0 {
			return fmt.Errorf("invalid %s: %s", envRateLimitMax, val)
		}
		cfg.RateLimit.Max = max
	}

	if val, ok := lookup(envMetricsEnabled); ok && strings.TrimSpace(val) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envMetricsEnabled, err)
		}
		cfg.Metrics.Enabled = enabled
	}

	if val, ok := lookup(envAdminEnabled); ok && strings.TrimSpace(val) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envAdminEnabled, err)
		}
		cfg.Admin.Enabled = enabled
	}

	if val, ok := lookup(envAdminListen); ok && strings.TrimSpace(val) != "" {
		cfg.Admin.Listen = strings.TrimSpace(val)
	}

	if val, ok := lookup(envAdminToken); ok && strings.TrimSpace(val) != "" {
		cfg.Admin.Token = strings.TrimSpace(val)
	}

	if val, ok := lookup(envTokenSecret); ok && strings.TrimSpace(val) != "" {
		cfg.Token.Secret = strings.TrimSpace(val)
	}

	if val, ok := lookup(envTokenIssuer); ok && strings.TrimSpace(val) != "" {
		cfg.Token.Issuer = strings.TrimSpace(val)
	}

	if val, ok := lookup(envTokenTTL); ok && strings.TrimSpace(val) != "" {
		ttl, err := parsePositiveDurationMillis(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envTokenTTL, err)
		}
		cfg.Token.TTL = DurationFrom(ttl)
	}

	if val, ok := lookup(envSessionToken); ok && strings.TrimSpace(val) != "" {
		cfg.Token.Session = strings.TrimSpace(val)
	}

	if val, ok := lookup(envInitialUserEmail); ok && strings.TrimSpace(val) != "" {
		cfg.Seed.InitialUserEmail = strings.TrimSpace(val)
	}

	return nil
}

// normalize fills in defaults that may be missing after YAML/env overrides.
func (cfg *Config) normalize() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultPort
	}
	if cfg.HTTP.ShutdownTimeout.AsDuration() <= 0 {
		cfg.HTTP.ShutdownTimeout = DurationFrom(defaultShutdownTimeout)
	}
	if cfg.RateLimit.Window.AsDuration() <= 0 {
		cfg.RateLimit.Window = DurationFrom(defaultRateLimitWindow)
	}
	if cfg.RateLimit.Max <= 0 {
		cfg.RateLimit.Max = defaultRateLimitMax
	}
	if strings.TrimSpace(cfg.Admin.Listen) == "" {
		cfg.Admin.Listen = defaultAdminListen
	}
	if strings.TrimSpace(cfg.Token.Session) == "" {
		cfg.Token.Session = defaultSessionToken
	}
	if strings.TrimSpace(cfg.Token.Order) == "" {
		cfg.Token.Order = defaultOrderToken
	}
	if cfg.Token.TTL.AsDuration() <= 0 {
		cfg.Token.TTL = DurationFrom(defaultTokenTTL)
	}
}

// Validate performs semantic validation on the configuration.
func (cfg Config) Validate() error {
	var errs []error

	if cfg.HTTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("http.port must be positive"))
	}
	if cfg.HTTP.ShutdownTimeout.AsDuration() <= 0 {
		errs = append(errs, fmt.Errorf("http.shutdownTimeout must be positive"))
	}
	if cfg.RateLimit.Max <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.max must be positive"))
	}
	if cfg.RateLimit.Window.AsDuration() <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.window must be positive"))
	}
	if cfg.Admin.Enabled && strings.TrimSpace(cfg.Admin.Listen) == "" {
		errs = append(errs, fmt.Errorf("admin.listen required when admin is enabled"))
	}
	if email := strings.TrimSpace(cfg.Seed.InitialUserEmail); email != "" && !strings.Contains(email, "@") {
		errs = append(errs, fmt.Errorf("seed.initialUserEmail %q is not an email address", email))
	}
	for i, u := range cfg.Seed.Users {
		if strings.TrimSpace(u.Email) == "" {
			errs = append(errs, fmt.Errorf("seed.users[%d] requires an email", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func parsePositiveDurationMillis(value string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if ms <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitAndTrim(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
