package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	fixtureconfig "github.com/jwtpizza/api_fixture/pkg/fixture/config"
)

func testConfig() fixtureconfig.Config {
	cfg := fixtureconfig.Default()
	cfg.HTTP.Port = 0
	cfg.Metrics.Enabled = false
	return cfg
}

func TestRuntimeRunStartsAndStops(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("runtime.Run: %v", err)
	}
}

func TestRuntimeRejectsDoubleStart(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	if err := rt.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	cancel()
	if err := rt.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRuntimeReloadConstraints(t *testing.T) {
	cfg := testConfig()
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := rt.Reload(cfg); !errors.Is(err, ErrReloadWhileRunning) {
		t.Fatalf("expected ErrReloadWhileRunning, got %v", err)
	}

	cancel()
	if err := rt.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if err := rt.Reload(cfg); err != nil {
		t.Fatalf("reload after stop: %v", err)
	}
}

func TestRuntimeReloadRejectsBadSeed(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}

	bad := testConfig()
	bad.Seed.InitialUserEmail = "ghost@jwt.com"
	if err := rt.Reload(bad); err == nil {
		t.Fatalf("expected reload failure for unknown initial user")
	}
}

func TestRuntimeStoreAccessor(t *testing.T) {
	cfg := testConfig()
	cfg.Seed.InitialUserEmail = "d@jwt.com"

	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}

	st := rt.Store()
	if st == nil {
		t.Fatalf("expected store")
	}
	if user, ok := st.Session(); !ok || user.Email != "d@jwt.com" {
		t.Fatalf("expected pre-established session, got %+v ok=%v", user, ok)
	}
}
