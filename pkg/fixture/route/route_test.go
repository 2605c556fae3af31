package route

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u
}

func TestExactMatcher(t *testing.T) {
	m := Exact("/api/auth")

	if _, ok := m.Match(mustURL(t, "/api/auth")); !ok {
		t.Fatalf("expected match for exact path")
	}
	if _, ok := m.Match(mustURL(t, "/api/auth?x=1")); !ok {
		t.Fatalf("query string should not affect exact match")
	}
	if _, ok := m.Match(mustURL(t, "/api/auth/extra")); ok {
		t.Fatalf("expected miss for longer path")
	}
	if _, ok := m.Match(mustURL(t, "/api/aut")); ok {
		t.Fatalf("expected miss for shorter path")
	}
}

func TestNumericMatcher(t *testing.T) {
	m := Numeric("/api/user")

	params, ok := m.Match(mustURL(t, "/api/user/7"))
	if !ok || params.ID != 7 {
		t.Fatalf("expected id 7, got %+v ok=%v", params, ok)
	}

	if _, ok := m.Match(mustURL(t, "/api/user/abc")); ok {
		t.Fatalf("expected miss for non-numeric tail")
	}
	if _, ok := m.Match(mustURL(t, "/api/user/7/orders")); ok {
		t.Fatalf("expected miss for extra segment")
	}
	if _, ok := m.Match(mustURL(t, "/api/user")); ok {
		t.Fatalf("expected miss for missing tail")
	}
}

func TestWithQueryMatcher(t *testing.T) {
	m := WithQuery("/api/user", "page")

	if _, ok := m.Match(mustURL(t, "/api/user?page=1")); !ok {
		t.Fatalf("expected match with page key")
	}
	if _, ok := m.Match(mustURL(t, "/api/user?page=")); !ok {
		t.Fatalf("empty value still counts as present")
	}
	if _, ok := m.Match(mustURL(t, "/api/user?limit=10")); ok {
		t.Fatalf("expected miss without page key")
	}
	if _, ok := m.Match(mustURL(t, "/api/users?page=1")); ok {
		t.Fatalf("expected miss for different path")
	}
}

func TestTableFirstMatchWins(t *testing.T) {
	var hit string
	mark := func(name string) HandlerFunc {
		return func(http.ResponseWriter, *http.Request, Params) { hit = name }
	}

	table := NewTable(
		Rule{
			Name:    "query",
			Matcher: WithQuery("/api/user", "page"),
			Handlers: map[string]HandlerFunc{
				http.MethodGet: mark("query"),
			},
		},
		Rule{
			Name:    "numeric",
			Matcher: Numeric("/api/user"),
			Handlers: map[string]HandlerFunc{
				http.MethodGet: mark("numeric"),
			},
		},
	)

	req := httptest.NewRequest(http.MethodGet, "/api/user?page=2", nil)
	rule, handler, _, ok := table.Resolve(req)
	if !ok || rule.Name != "query" {
		t.Fatalf("expected query rule, got %+v ok=%v", rule, ok)
	}
	handler(nil, req, Params{})
	if hit != "query" {
		t.Fatalf("wrong handler invoked: %q", hit)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user/5", nil)
	rule, _, params, ok := table.Resolve(req)
	if !ok || rule.Name != "numeric" || params.ID != 5 {
		t.Fatalf("expected numeric rule with id 5, got %+v params=%+v", rule, params)
	}
}

func TestResolveUnlistedMethod(t *testing.T) {
	table := NewTable(Rule{
		Name:    "auth",
		Matcher: Exact("/api/auth"),
		Handlers: map[string]HandlerFunc{
			http.MethodPut: func(http.ResponseWriter, *http.Request, Params) {},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	rule, handler, _, ok := table.Resolve(req)
	if !ok || rule == nil {
		t.Fatalf("rule should still match on path")
	}
	if handler != nil {
		t.Fatalf("expected nil handler for unlisted method")
	}
}

func TestResolveUnmatched(t *testing.T) {
	table := NewTable(Rule{
		Name:    "auth",
		Matcher: Exact("/api/auth"),
		Handlers: map[string]HandlerFunc{
			http.MethodPut: func(http.ResponseWriter, *http.Request, Params) {},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	if _, _, _, ok := table.Resolve(req); ok {
		t.Fatalf("expected no match")
	}
}

func TestRuleMethodsStableOrder(t *testing.T) {
	rule := Rule{Handlers: map[string]HandlerFunc{
		http.MethodDelete: nil,
		http.MethodPut:    nil,
		http.MethodGet:    nil,
	}}

	got := rule.Methods()
	want := []string{http.MethodGet, http.MethodPut, http.MethodDelete}
	if len(got) != len(want) {
		t.Fatalf("unexpected methods: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected method order: %v", got)
		}
	}
}
