package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordingLogger struct {
	infos  []string
	warns  []string
	errors []string
}

func (l *recordingLogger) Infow(msg string, _ ...any)  { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warnw(msg string, _ ...any)  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Errorw(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func noopTrace(context.Context) string { return "" }

func writeProblem(w http.ResponseWriter, status int, title, _, _, _ string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(title))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options: %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options: %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got != "no-referrer" {
		t.Fatalf("Referrer-Policy: %q", got)
	}
}

func TestBodyLimitRejectsOversizedDeclaredLength(t *testing.T) {
	handler := BodyLimit(16, noopTrace, writeProblem)(okHandler())

	body := bytes.NewReader(bytes.Repeat([]byte("a"), 64))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestBodyLimitAllowsSmallBody(t *testing.T) {
	handler := BodyLimit(1024, noopTrace, writeProblem)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("ok")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitDeniesAndSkipsPreflight(t *testing.T) {
	denyAll := func(string, time.Time) bool { return false }
	key := func(*http.Request) string { return "client" }

	handler := RateLimit(denyAll, key, time.Now, noopTrace, writeProblem)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// Preflight requests bypass the limiter.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for OPTIONS, got %d", rec.Code)
	}
}

func TestLoggingClassifiesByStatus(t *testing.T) {
	cases := []struct {
		status int
		bucket string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}

	for _, tc := range cases {
		logger := &recordingLogger{}
		handler := Logging(logger, nil, nil, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		switch tc.bucket {
		case "info":
			if len(logger.infos) != 1 || len(logger.warns) != 0 || len(logger.errors) != 0 {
				t.Fatalf("status %d: expected info log, got %+v", tc.status, logger)
			}
		case "warn":
			if len(logger.warns) != 1 {
				t.Fatalf("status %d: expected warn log, got %+v", tc.status, logger)
			}
		case "error":
			if len(logger.errors) != 1 {
				t.Fatalf("status %d: expected error log, got %+v", tc.status, logger)
			}
		}
	}
}

func TestLoggingDrivesTracker(t *testing.T) {
	var gotStatus int
	track := func(*http.Request) func(int, time.Duration) {
		return func(status int, _ time.Duration) { gotStatus = status }
	}

	handler := Logging(&recordingLogger{}, track, nil, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if gotStatus != http.StatusCreated {
		t.Fatalf("tracker saw status %d", gotStatus)
	}
}

func TestRequestMetadataEchoesIDs(t *testing.T) {
	ensure := func(r *http.Request) (*http.Request, string, string) {
		return r, "req-1", "trace-1"
	}

	handler := RequestMetadata(ensure)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("X-Request-Id: %q", got)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != "trace-1" {
		t.Fatalf("X-Trace-Id: %q", got)
	}
}
