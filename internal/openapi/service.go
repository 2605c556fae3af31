// Package openapi builds the machine-readable description of the fixture's
// intercepted routes. Unlike the human-oriented /api/docs payload, the
// document here is generated from the live route table, so it always
// reflects what the server actually matches.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Endpoint describes one operation the fixture serves.
type Endpoint struct {
	Method  string
	Path    string
	Summary string
}

// DocumentProvider exposes the OpenAPI document.
type DocumentProvider interface {
	Document(ctx context.Context) ([]byte, error)
}

// Service renders the endpoint list into an OpenAPI 3 document and caches
// the result; the route table never changes after startup.
type Service struct {
	version   string
	endpoints []Endpoint

	mu    sync.Mutex
	cache []byte
}

// NewService constructs a Service for the given endpoints.
func NewService(version string, endpoints []Endpoint) *Service {
	if version == "" {
		version = "dev"
	}
	return &Service{version: version, endpoints: endpoints}
}

// Document returns the OpenAPI document in JSON form.
func (s *Service) Document(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		return clone(s.cache), nil
	}

	doc, err := s.buildDocument()
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	s.cache = raw
	return clone(raw), nil
}

func (s *Service) buildDocument() (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Pizza ordering fixture API",
			Description: "Canned backend routes served in place of the real pizza service.",
			Version:     s.version,
		},
		Paths: openapi3.NewPaths(),
	}

	for _, e := range s.endpoints {
		if e.Method == "" || e.Path == "" {
			return nil, fmt.Errorf("endpoint missing method or path: %+v", e)
		}

		item := doc.Paths.Value(e.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(e.Path, item)
		}

		op := openapi3.NewOperation()
		op.Summary = e.Summary
		op.Responses = openapi3.NewResponses()
		item.SetOperation(e.Method, op)
	}

	return doc, nil
}

func clone(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
