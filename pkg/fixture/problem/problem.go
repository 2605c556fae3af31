// Package problem emits RFC 7807 responses for failures at the server
// edge (rate limiting, body limits, CORS rejections, unmatched routes).
// Application routes answer with their own canned JSON shapes; problem
// documents are reserved for requests that never reach a fixture handler.
package problem

import (
	"encoding/json"
	"net/http"
)

// Response represents an RFC 7807 problem document.
type Response struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}

// Write emits a problem+json response.
func Write(w http.ResponseWriter, status int, title, detail, traceID, instance string) {
	resp := Response{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		TraceID:  traceID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
