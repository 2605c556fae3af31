// Package api implements the fixture's intercepted application routes:
// authentication, user management, catalog, franchise, order, and docs.
// Handlers read and mutate the fixture store and always fulfil the request
// with a well-formed response; failures surface as status-bearing JSON
// bodies, never as panics or dropped connections.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
	"github.com/jwtpizza/api_fixture/pkg/fixture/token"
	pkglog "github.com/jwtpizza/api_fixture/pkg/log"
)

const (
	msgOK               = "ok"
	msgUnauthorized     = "Unauthorized"
	msgMethodNotAllowed = "Method not allowed"
)

// API wires the fixture store and token issuer into route handlers.
type API struct {
	store  *store.Store
	tokens *token.Issuer
	logger pkglog.Logger
}

// New constructs the handler set.
func New(st *store.Store, tokens *token.Issuer, logger pkglog.Logger) *API {
	if logger == nil {
		logger = pkglog.Shared()
	}
	return &API{store: st, tokens: tokens, logger: logger}
}

// Routes returns the fixture route table. Rules are checked in
// declaration order and the first match wins; precedence between
// overlapping rules is fixed by their position here.
func (a *API) Routes() *route.Table {
	return route.NewTable(
		route.Rule{
			Name:     "auth",
			Template: "/api/auth",
			Summary:  "Login, register, or logout",
			Matcher:  route.Exact("/api/auth"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodPut:    a.handleLogin,
				http.MethodPost:   a.handleRegister,
				http.MethodDelete: a.handleLogout,
			},
		},
		route.Rule{
			Name:     "me",
			Template: "/api/user/me",
			Summary:  "Current session user",
			Matcher:  route.Exact("/api/user/me"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleMe,
			},
		},
		route.Rule{
			Name:     "user_list",
			Template: "/api/user",
			Summary:  "List users with filter and pagination",
			Matcher:  route.WithQuery("/api/user", "page"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleListUsers,
			},
		},
		route.Rule{
			Name:     "user_by_id",
			Template: "/api/user/{id}",
			Summary:  "Update or delete a user",
			Matcher:  route.Numeric("/api/user"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodPut:    a.handleUpdateUser,
				http.MethodDelete: a.handleDeleteUser,
			},
		},
		route.Rule{
			Name:     "menu",
			Template: "/api/order/menu",
			Summary:  "Pizza menu",
			Matcher:  route.Exact("/api/order/menu"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleMenu,
			},
		},
		route.Rule{
			Name:     "order_verify",
			Template: "/api/order/verify",
			Summary:  "Verify an order receipt",
			Matcher:  route.Exact("/api/order/verify"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodPost: a.handleVerifyOrder,
			},
		},
		route.Rule{
			Name:     "franchise_list",
			Template: "/api/franchise",
			Summary:  "List franchises",
			Matcher:  route.Exact("/api/franchise"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleFranchiseList,
			},
		},
		route.Rule{
			Name:     "franchise_by_id",
			Template: "/api/franchise/{id}",
			Summary:  "Franchises for a user",
			Matcher:  route.Numeric("/api/franchise"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleFranchiseByID,
			},
		},
		route.Rule{
			Name:     "order",
			Template: "/api/order",
			Summary:  "Order history and checkout",
			Matcher:  route.Exact("/api/order"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet:  a.handleOrderHistory,
				http.MethodPost: a.handleCreateOrder,
			},
		},
		route.Rule{
			Name:     "docs",
			Template: "/api/docs",
			Summary:  "API documentation",
			Matcher:  route.Exact("/api/docs"),
			Handlers: map[string]route.HandlerFunc{
				http.MethodGet: a.handleDocs,
			},
		},
	)
}

// MethodNotAllowed answers a request whose path matched a rule but whose
// method is not implemented on it.
func (a *API) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// decodeBody fills v from the request body. Malformed or absent bodies are
// tolerated: the handler proceeds with zero values so a broken client still
// gets a well-formed response.
func (a *API) decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.logger.Warnw("ignoring malformed request body", "path", r.URL.Path, "error", err)
	}
}
