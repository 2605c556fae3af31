// Package route matches incoming requests against an ordered table of
// fixture rules. Matching is restricted to three kinds: exact path,
// numeric-id tail, and exact path with a required query key.
package route

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Params carries values captured from a matched path.
type Params struct {
	// ID is the numeric tail segment for rules matched by Numeric.
	ID int64
}

// HandlerFunc handles a matched request.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, p Params)

// Matcher decides whether a rule covers a request URL and captures params.
type Matcher interface {
	Match(u *url.URL) (Params, bool)
}

type exactMatcher struct {
	path string
}

func (m exactMatcher) Match(u *url.URL) (Params, bool) {
	return Params{}, u.Path == m.path
}

// Exact matches a path verbatim.
func Exact(path string) Matcher {
	return exactMatcher{path: path}
}

type numericMatcher struct {
	re *regexp.Regexp
}

func (m numericMatcher) Match(u *url.URL) (Params, bool) {
	groups := m.re.FindStringSubmatch(u.Path)
	if groups == nil {
		return Params{}, false
	}
	id, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return Params{}, false
	}
	return Params{ID: id}, true
}

// Numeric matches prefix followed by a single numeric tail segment, e.g.
// Numeric("/api/user") covers /api/user/7.
func Numeric(prefix string) Matcher {
	return numericMatcher{re: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `/(\d+)$`)}
}

type queryMatcher struct {
	path string
	key  string
}

func (m queryMatcher) Match(u *url.URL) (Params, bool) {
	if u.Path != m.path {
		return Params{}, false
	}
	return Params{}, u.Query().Has(m.key)
}

// WithQuery matches an exact path only when the named query key is present.
func WithQuery(path, key string) Matcher {
	return queryMatcher{path: path, key: key}
}

// Rule binds a matcher to per-method handlers, along with the metadata the
// server uses for metrics labels and the OpenAPI document.
type Rule struct {
	// Name labels the rule in metrics and logs.
	Name string
	// Template is the human-readable path shape, e.g. /api/user/{id}.
	Template string
	// Summary is a one-line description for the OpenAPI document.
	Summary string
	// Matcher covers the request URL.
	Matcher Matcher
	// Handlers maps HTTP methods to handlers. A request matching the rule's
	// URL with an unlisted method is answered by the table's
	// method-not-allowed handler.
	Handlers map[string]HandlerFunc
}

// Methods returns the rule's methods in a stable order.
func (r Rule) Methods() []string {
	order := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}
	var out []string
	for _, m := range order {
		if _, ok := r.Handlers[m]; ok {
			out = append(out, m)
		}
	}
	for m := range r.Handlers {
		if !contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Table is an ordered rule list. The first rule whose matcher covers the
// request URL wins; later rules are never consulted.
type Table struct {
	rules []Rule
}

// NewTable builds a table preserving declaration order.
func NewTable(rules ...Rule) *Table {
	return &Table{rules: rules}
}

// Rules returns the table's rules in declaration order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Resolve finds the first rule covering the request URL. The returned
// handler is nil when the rule does not implement the request's method.
func (t *Table) Resolve(r *http.Request) (*Rule, HandlerFunc, Params, bool) {
	for i := range t.rules {
		rule := &t.rules[i]
		params, ok := rule.Matcher.Match(r.URL)
		if !ok {
			continue
		}
		return rule, rule.Handlers[r.Method], params, true
	}
	return nil, nil, Params{}, false
}
