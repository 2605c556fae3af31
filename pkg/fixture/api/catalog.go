package api

import (
	"net/http"

	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
)

// Catalog and franchise routes are stateless reads of fixture data.

func (a *API) handleMenu(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	writeJSON(w, http.StatusOK, a.store.Menu())
}

func (a *API) handleFranchiseList(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	writeJSON(w, http.StatusOK, a.store.FranchiseList())
}

func (a *API) handleFranchiseByID(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	writeJSON(w, http.StatusOK, a.store.FranchisesByID())
}
