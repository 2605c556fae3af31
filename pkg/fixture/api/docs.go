package api

import (
	"net/http"

	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

type docsEndpoint struct {
	RequiresAuth bool   `json:"requiresAuth"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Description  string `json:"description"`
	Example      string `json:"example"`
	Response     any    `json:"response"`
}

// handleDocs serves the fixed single-endpoint description document the UI
// documentation page renders. The richer machine-readable surface lives at
// /openapi.json.
func (a *API) handleDocs(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": []docsEndpoint{
			{
				RequiresAuth: false,
				Method:       http.MethodGet,
				Path:         "/api/order/menu",
				Description:  "Get menu",
				Example:      "curl /api/order/menu",
				Response:     store.DefaultMenu(),
			},
		},
	})
}
