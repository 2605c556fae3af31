package api

import (
	"net/http"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

type authResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// handleLogin checks the seed table first, then registrations. A wrong
// password leaves the session untouched.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request, _ route.Params) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	a.decodeBody(r, &req)

	if user, password, ok := a.store.SeededByEmail(req.Email); ok && password == req.Password {
		a.store.SetSession(user)
		writeJSON(w, http.StatusOK, authResponse{User: user, Token: a.tokens.SessionToken(user)})
		return
	}

	if reg, ok := a.store.RegisteredByEmail(req.Email); ok && reg.Password == req.Password {
		a.store.SetSession(reg.User)
		writeJSON(w, http.StatusOK, authResponse{User: reg.User, Token: a.tokens.SessionToken(reg.User)})
		return
	}

	writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
}

// handleRegister unconditionally creates a diner with the fixed
// registration id. Duplicate emails overwrite the earlier record; this is
// a fixture, not an auth server.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request, _ route.Params) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	a.decodeBody(r, &req)

	user := model.User{
		ID:    store.RegisteredUserID,
		Name:  req.Name,
		Email: req.Email,
		Roles: []model.Role{{Role: model.RoleDiner}},
	}
	a.store.PutRegistered(req.Email, store.Registration{Password: req.Password, User: user})
	a.store.SetSession(user)

	writeJSON(w, http.StatusOK, authResponse{User: user, Token: a.tokens.SessionToken(user)})
}

// handleLogout clears the session. Logging out while anonymous succeeds.
func (a *API) handleLogout(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	a.store.ClearSession()
	writeMessage(w, http.StatusOK, msgOK)
}

// handleMe returns the session user verbatim, or JSON null when anonymous.
func (a *API) handleMe(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	if user, ok := a.store.Session(); ok {
		writeJSON(w, http.StatusOK, user)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
