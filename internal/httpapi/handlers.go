// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/corvid-labs/isg/pkg/ingestion"
	"github.com/corvid-labs/isg/pkg/reindex"
	"github.com/corvid-labs/isg/pkg/storage"
)

// Server wires the Graph Store and the Incremental Re-Indexer into the
// nine endpoints registered by Routes. It holds no state of its own beyond
// what those two already own.
type Server struct {
	backend *storage.EmbeddedBackend
	driver  *ingestion.Driver
	store   reindex.Store
	root    string
	logger  *slog.Logger
}

// NewServer builds a Server over backend (for queries) and driver/store
// (for the reindex trigger, rooted at workspaceRoot so relative paths in
// isg_entity can be recovered from the absolute paths HTTP clients send).
func NewServer(backend *storage.EmbeddedBackend, driver *ingestion.Driver, store reindex.Store, workspaceRoot string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, driver: driver, store: store, root: workspaceRoot, logger: logger}
}

// Routes returns the ServeMux carrying exactly the endpoints spec.md §6
// closes over. The pack carries no third-party HTTP router (grepped across
// every example repo's go.mod — none import chi/gorilla/gin/echo), so this
// uses net/http's Go 1.22 pattern-matching ServeMux rather than reaching
// for an unrepresented dependency.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health-check-status", s.handleHealthCheckStatus)
	mux.HandleFunc("GET /entity-listing-search", s.handleEntityListingSearch)
	mux.HandleFunc("GET /entity-detail-lookup", s.handleEntityDetailLookup)
	mux.HandleFunc("GET /edge-listing-query", s.handleEdgeListingQuery)
	mux.HandleFunc("GET /blast-radius-analysis", s.handleBlastRadiusAnalysis)
	mux.HandleFunc("GET /cycle-detection-scan", s.handleCycleDetectionScan)
	mux.HandleFunc("GET /complexity-hotspot-report", s.handleComplexityHotspotReport)
	mux.HandleFunc("GET /semantic-cluster-listing", s.handleSemanticClusterListing)
	mux.HandleFunc("POST /incremental-reindex-file-update", s.handleIncrementalReindexFileUpdate)
	return mux
}

func (s *Server) handleHealthCheckStatus(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/health-check-status"
	ctx := r.Context()

	entityCount, err := s.countRelation(ctx, `?[count(key)] := *isg_entity{key, removed: false}`)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	edgeCount, err := s.countRelation(ctx, `?[count(from_key)] := *isg_edge{from_key}`)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, map[string]any{
		"status":         "ok",
		"entity_count":   entityCount,
		"edge_count":     edgeCount,
		"workspace_root": s.root,
	})
}

func (s *Server) countRelation(ctx context.Context, script string) (int, error) {
	res, err := s.backend.Query(ctx, script)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return 0, nil
	}
	f, _ := res.Rows[0][0].(float64)
	return int(f), nil
}

func (s *Server) handleEntityListingSearch(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/entity-listing-search"
	q := r.URL.Query()
	limit := queryInt(q, "limit", 50)

	var conditions []string
	if name := q.Get("name"); name != "" {
		conditions = append(conditions, fmt.Sprintf("regex_matches(name, %q)", name))
	}
	if kind := q.Get("kind"); kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = %q", kind))
	}
	if lang := q.Get("language"); lang != "" {
		conditions = append(conditions, fmt.Sprintf("language = %q", lang))
	}
	extra := ""
	if len(conditions) > 0 {
		extra = ", " + strings.Join(conditions, ", ")
	}

	script := fmt.Sprintf(`
		?[key, name, kind, language, file_path, line_start, line_end] :=
			*isg_entity{key, name, kind, language, file_path, line_start, line_end, removed: false}%s
		:order file_path, line_start
		:limit %d
	`, extra, limit)

	res, err := s.backend.Query(r.Context(), script)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, rowsToMaps(res))
}

func (s *Server) handleEntityDetailLookup(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/entity-detail-lookup"
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("missing required query parameter: key"))
		return
	}
	script := fmt.Sprintf(`
		?[key, semantic_path, kind, language, name, file_path, line_start, line_end,
		  signature_text, body_hash, parent_scope, is_test, birth_timestamp] :=
			*isg_entity{key, semantic_path, kind, language, name, file_path, line_start, line_end,
			  signature_text, body_hash, parent_scope, is_test, birth_timestamp, removed: false},
			key = %q
	`, key)
	res, err := s.backend.Query(r.Context(), script)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	if len(res.Rows) == 0 {
		writeError(w, endpoint, http.StatusNotFound, fmt.Errorf("entity not found: %s", key))
		return
	}
	writeOK(w, endpoint, rowsToMaps(res)[0])
}

func (s *Server) handleEdgeListingQuery(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/edge-listing-query"
	q := r.URL.Query()
	limit := queryInt(q, "limit", 100)

	var conditions []string
	if from := q.Get("from_key"); from != "" {
		conditions = append(conditions, fmt.Sprintf("from_key = %q", from))
	}
	if to := q.Get("to_key"); to != "" {
		conditions = append(conditions, fmt.Sprintf("to_key = %q", to))
	}
	if typ := q.Get("edge_type"); typ != "" {
		conditions = append(conditions, fmt.Sprintf("edge_type = %q", typ))
	}
	extra := ""
	if len(conditions) > 0 {
		extra = ", " + strings.Join(conditions, ", ")
	}
	script := fmt.Sprintf(`
		?[from_key, to_key, edge_type] := *isg_edge{from_key, to_key, edge_type}%s
		:limit %d
	`, extra, limit)

	res, err := s.backend.Query(r.Context(), script)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, rowsToMaps(res))
}

func (s *Server) handleBlastRadiusAnalysis(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/blast-radius-analysis"
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("missing required query parameter: key"))
		return
	}
	hops := queryInt(q, "hops", 2)
	dir := storage.Forward
	if q.Get("direction") == "reverse" {
		dir = storage.Reverse
	}

	res, err := s.backend.TransitiveClosure(r.Context(), []string{key}, hops, dir)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, map[string]any{
		"seed":      key,
		"direction": string(dir),
		"max_hops":  hops,
		"reached":   rowsToMaps(res),
	})
}

func (s *Server) handleCycleDetectionScan(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/cycle-detection-scan"
	res, err := s.backend.DetectCycles(r.Context())
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, rowsToMaps(res))
}

func (s *Server) handleComplexityHotspotReport(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/complexity-hotspot-report"
	limit := queryInt(r.URL.Query(), "limit", 25)
	res, err := s.backend.ComplexityHotspots(r.Context(), limit)
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, rowsToMaps(res))
}

func (s *Server) handleSemanticClusterListing(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/semantic-cluster-listing"
	res, err := s.backend.SemanticClusters(r.Context())
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, endpoint, rowsToMaps(res))
}

// handleIncrementalReindexFileUpdate implements the one HTTP endpoint that
// directly exercises the core, per spec.md §6: validates path, invokes
// §4.7 for exactly that file, and reports diff counts plus processing
// time. Error cases: 400 for a missing, relative or directory path, 500
// for a stat or storage failure. A path that no longer exists on disk is
// not answered with 404: it is reindexed as a deleted file, removing its
// entities and their outgoing edges.
func (s *Server) handleIncrementalReindexFileUpdate(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/incremental-reindex-file-update"
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("missing required query parameter: path"))
		return
	}
	if !filepath.IsAbs(path) {
		writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("path must be absolute: %s", path))
		return
	}

	started := time.Now()
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}

	info, statErr := os.Stat(path)
	fileRemoved := statErr != nil && os.IsNotExist(statErr)
	if statErr != nil && !fileRemoved {
		writeError(w, endpoint, http.StatusInternalServerError, statErr)
		return
	}
	if statErr == nil && info.IsDir() {
		writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("path is a directory: %s", path))
		return
	}

	var runResult *ingestion.RunResult
	hashChanged := false

	if fileRemoved {
		runResult, err = s.driver.RemoveFiles(r.Context(), []string{rel})
		if err != nil {
			writeError(w, endpoint, http.StatusInternalServerError, err)
			return
		}
		hashChanged = runResult.EntitiesRemoved > 0 || runResult.EdgesRemoved > 0
	} else {
		priorHashes, loadErr := s.store.LoadFileHashes(r.Context())
		if loadErr != nil {
			writeError(w, endpoint, http.StatusInternalServerError, loadErr)
			return
		}
		changes, deltaErr := ingestion.Compute([]ingestion.FileInfo{{Path: rel, FullPath: path, Size: info.Size()}}, priorHashes)
		if deltaErr != nil {
			writeError(w, endpoint, http.StatusInternalServerError, deltaErr)
			return
		}
		for _, c := range changes {
			if c.Type == ingestion.FileUnchanged {
				runResult = &ingestion.RunResult{}
			}
		}
		if runResult == nil {
			hashChanged = true
			runResult, err = s.driver.RunFiles(r.Context(), []ingestion.FileInfo{{Path: rel, FullPath: path, Size: info.Size()}})
			if err != nil {
				writeError(w, endpoint, http.StatusInternalServerError, err)
				return
			}
		}
	}

	writeOK(w, endpoint, map[string]any{
		"path":              path,
		"entities_added":    runResult.EntitiesAdded,
		"entities_removed":  runResult.EntitiesRemoved,
		"entities_modified": runResult.EntitiesModified,
		"edges_added":       runResult.EdgesAdded,
		"edges_removed":     runResult.EdgesRemoved,
		"hash_changed":      hashChanged,
		"processing_ms":     time.Since(started).Milliseconds(),
	})
}

func queryInt(q url.Values, key string, fallback int) int {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func rowsToMaps(res *storage.QueryResult) []map[string]any {
	out := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		m := make(map[string]any, len(res.Headers))
		for i, h := range res.Headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
