package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestDocumentShape(t *testing.T) {
	svc := NewService("1.2.3", []Endpoint{
		{Method: http.MethodPut, Path: "/api/auth", Summary: "Login"},
		{Method: http.MethodPost, Path: "/api/auth", Summary: "Register"},
		{Method: http.MethodGet, Path: "/api/user/{id}", Summary: "User"},
	})

	raw, err := svc.Document(context.Background())
	if err != nil {
		t.Fatalf("document: %v", err)
	}

	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			Summary string `json:"summary"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc.OpenAPI != "3.0.3" || doc.Info.Version != "1.2.3" {
		t.Fatalf("unexpected header: %+v", doc)
	}
	if len(doc.Paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(doc.Paths))
	}
	auth := doc.Paths["/api/auth"]
	if auth["put"].Summary != "Login" || auth["post"].Summary != "Register" {
		t.Fatalf("unexpected auth operations: %+v", auth)
	}
}

func TestDocumentCached(t *testing.T) {
	svc := NewService("", []Endpoint{{Method: http.MethodGet, Path: "/api/order/menu"}})

	first, err := svc.Document(context.Background())
	if err != nil {
		t.Fatalf("first document: %v", err)
	}
	second, err := svc.Document(context.Background())
	if err != nil {
		t.Fatalf("second document: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected identical cached documents")
	}

	// Callers get copies, not the cache itself.
	first[0] = '!'
	third, _ := svc.Document(context.Background())
	if third[0] == '!' {
		t.Fatalf("cache was mutated through a returned slice")
	}
}

func TestDocumentRejectsIncompleteEndpoint(t *testing.T) {
	svc := NewService("dev", []Endpoint{{Method: "", Path: "/x"}})
	if _, err := svc.Document(context.Background()); err == nil {
		t.Fatalf("expected error for endpoint without method")
	}
}
