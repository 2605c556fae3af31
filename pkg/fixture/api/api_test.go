package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwtpizza/api_fixture/pkg/fixture/config"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
	"github.com/jwtpizza/api_fixture/pkg/fixture/token"
)

func newTestAPI(t *testing.T, seed store.Seed) (*API, *store.Store) {
	t.Helper()
	st, err := store.New(seed)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(st, token.New(config.Default().Token), nil), st
}

// dispatch resolves the request against the fixture route table and invokes
// the matched handler, the same way the server's API dispatcher does.
func dispatch(t *testing.T, a *API, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()

	_, handler, params, ok := a.Routes().Resolve(req)
	if !ok {
		t.Fatalf("no route for %s %s", method, target)
	}
	if handler == nil {
		a.MethodNotAllowed(rec, req)
		return rec
	}
	handler(rec, req, params)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodGet, "/api/auth", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "Method not allowed" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRoutePrecedence(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})
	table := a.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	rule, _, _, ok := table.Resolve(req)
	if !ok || rule.Name != "me" {
		t.Fatalf("expected me rule, got %+v", rule)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user?page=1", nil)
	rule, _, _, ok = table.Resolve(req)
	if !ok || rule.Name != "user_list" {
		t.Fatalf("expected user_list rule, got %+v", rule)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/user/3", nil)
	rule, _, params, ok := table.Resolve(req)
	if !ok || rule.Name != "user_by_id" || params.ID != 3 {
		t.Fatalf("expected user_by_id with id 3, got %+v params=%+v", rule, params)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/order/menu", nil)
	rule, _, _, ok = table.Resolve(req)
	if !ok || rule.Name != "menu" {
		t.Fatalf("expected menu rule, got %+v", rule)
	}
}

func TestMalformedBodyTolerated(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	req := httptest.NewRequest(http.MethodPut, "/api/auth", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	_, handler, params, ok := a.Routes().Resolve(req)
	if !ok || handler == nil {
		t.Fatalf("expected login handler")
	}
	handler(rec, req, params)

	// Zero-value credentials never match a seed user.
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unparseable login, got %d", rec.Code)
	}
}
