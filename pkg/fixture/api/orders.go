package api

import (
	"net/http"
	"strconv"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
)

const (
	// fixedOrderID is stamped onto every created order.
	fixedOrderID = "23"
	// fixedOrderDate pins checkout responses to a deterministic timestamp.
	fixedOrderDate = "2026-01-01T00:00:00.000Z"
)

// handleOrderHistory returns the configured history override, or an empty
// history scoped to the current session's diner id.
func (a *API) handleOrderHistory(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	if history, ok := a.store.OrderHistory(); ok {
		writeJSON(w, http.StatusOK, history)
		return
	}

	dinerID := "0"
	if user, ok := a.store.Session(); ok {
		dinerID = strconv.FormatInt(user.ID, 10)
	}
	writeJSON(w, http.StatusOK, model.OrderHistory{
		ID:      "history-1",
		DinerID: dinerID,
		Orders:  []model.Order{},
	})
}

// handleCreateOrder echoes the submitted order with the fixed id and date
// plus a receipt token. Orders are never appended to history; each POST is
// an independent echo.
func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request, _ route.Params) {
	order := map[string]any{}
	a.decodeBody(r, &order)

	order["id"] = fixedOrderID
	order["date"] = fixedOrderDate

	writeJSON(w, http.StatusOK, map[string]any{
		"order": order,
		"jwt":   a.tokens.OrderToken(order),
	})
}

// handleVerifyOrder always reports the fixed valid verdict.
func (a *API) handleVerifyOrder(w http.ResponseWriter, _ *http.Request, _ route.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "valid",
		"payload": map[string]any{"orderId": 23},
	})
}
