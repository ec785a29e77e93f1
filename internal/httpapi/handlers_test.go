// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

//go:build cgo

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corvid-labs/isg/pkg/storage"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir: t.TempDir(),
		Engine:  "mem",
	})
	if err != nil {
		t.Fatalf("NewEmbeddedBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	if err := backend.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	seed := `
		?[key, semantic_path, kind, language, name, file_path, line_start, line_end, signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp] <- [
			["go:function:Handler:abc:10-20", "pkg/api.Handler", "function", "go", "Handler", "pkg/api/handler.go", 10, 20, "func Handler()", "", "h1", "", false, 1],
			["go:function:Dispatch:abc:30-40", "pkg/api.Dispatch", "function", "go", "Dispatch", "pkg/api/handler.go", 30, 40, "func Dispatch()", "", "h2", "", false, 2]
		] :put isg_entity { key, semantic_path, kind, language, name, file_path, line_start, line_end, signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp }
	`
	if err := backend.Execute(context.Background(), seed); err != nil {
		t.Fatalf("seed entities: %v", err)
	}
	edgeSeed := `
		?[from_key, to_key, edge_type] <- [["go:function:Handler:abc:10-20", "go:function:Dispatch:abc:30-40", "calls"]]
		:put isg_edge { from_key, to_key, edge_type }
	`
	if err := backend.Execute(context.Background(), edgeSeed); err != nil {
		t.Fatalf("seed edges: %v", err)
	}

	store := storage.NewIngestionStore(backend)
	return NewServer(backend, nil, store, t.TempDir(), nil)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env
}

func TestHandleHealthCheckStatus(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health-check-status", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Errorf("expected success=true, got error=%q", env.Error)
	}
	if env.Endpoint != "/health-check-status" {
		t.Errorf("endpoint = %q", env.Endpoint)
	}
}

func TestHandleEntityListingSearch(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/entity-listing-search?name=Handler", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	rows, ok := env.Data.([]any)
	if !ok {
		t.Fatalf("data is not a list: %T", env.Data)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 matching entity, got %d", len(rows))
	}
}

func TestHandleEntityDetailLookup_MissingKey(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/entity-detail-lookup", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("expected success=false")
	}
}

func TestHandleEntityDetailLookup_NotFound(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/entity-detail-lookup?key=does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleEdgeListingQuery(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/edge-listing-query", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	rows, ok := env.Data.([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected 1 edge, got %v", env.Data)
	}
}

func TestHandleBlastRadiusAnalysis_MissingKey(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blast-radius-analysis", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleBlastRadiusAnalysis_Forward(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blast-radius-analysis?key=go:function:Handler:abc:10-20&hops=1", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success=true, got error=%q", env.Error)
	}
}

func TestHandleIncrementalReindexFileUpdate_MissingPath(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/incremental-reindex-file-update", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleIncrementalReindexFileUpdate_RelativePathRejected(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/incremental-reindex-file-update?path=relative/file.go", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a non-absolute path", rec.Code)
	}
}
