// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testing provides shared setup helpers for package tests that
// exercise a real embedded graph store instead of a fake.
package testing

import (
	"context"
	"testing"

	"github.com/corvid-labs/isg/pkg/storage"
)

// SetupTestBackend creates an in-memory graph store for testing, with the
// schema already created and cleanup registered.
func SetupTestBackend(t *testing.T) *storage.EmbeddedBackend {
	t.Helper()

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		Engine:  "mem",
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}

	if err := backend.EnsureSchema(); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

// InsertTestEntity seeds a single isg_entity row for query-path tests.
func InsertTestEntity(t *testing.T, backend *storage.EmbeddedBackend, key, semanticPath, kind, name, filePath string, lineStart, lineEnd int) {
	t.Helper()

	query := `?[key, semantic_path, kind, language, name, file_path, line_start, line_end,
		signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp] <- [[
		$key, $semantic_path, $kind, "go", $name, $file_path, $line_start, $line_end,
		"", "", "", "", false, 1
	]]
	:put isg_entity { key, semantic_path, kind, language, name, file_path, line_start, line_end,
		signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp }`

	ctx := context.Background()
	_, err := backend.DB().Run(query, map[string]any{
		"key":           key,
		"semantic_path": semanticPath,
		"kind":          kind,
		"name":          name,
		"file_path":     filePath,
		"line_start":    lineStart,
		"line_end":      lineEnd,
	})
	_ = ctx
	if err != nil {
		t.Fatalf("failed to insert test entity: %v", err)
	}
}

// InsertTestEdge seeds a single isg_edge row.
func InsertTestEdge(t *testing.T, backend *storage.EmbeddedBackend, fromKey, toKey, edgeType string) {
	t.Helper()

	query := `?[from_key, to_key, edge_type] <- [[$from_key, $to_key, $edge_type]]
		:put isg_edge { from_key, to_key, edge_type }`

	_, err := backend.DB().Run(query, map[string]any{
		"from_key":  fromKey,
		"to_key":    toKey,
		"edge_type": edgeType,
	})
	if err != nil {
		t.Fatalf("failed to insert test edge: %v", err)
	}
}

// QueryEntities returns every isg_entity row's key and name.
func QueryEntities(t *testing.T, backend *storage.EmbeddedBackend) *storage.QueryResult {
	t.Helper()

	result, err := backend.Query(context.Background(), "?[key, name] := *isg_entity{key, name}")
	if err != nil {
		t.Fatalf("failed to query entities: %v", err)
	}
	return result
}

// QueryEdges returns every isg_edge row.
func QueryEdges(t *testing.T, backend *storage.EmbeddedBackend) *storage.QueryResult {
	t.Helper()

	result, err := backend.Query(context.Background(), "?[from_key, to_key, edge_type] := *isg_edge{from_key, to_key, edge_type}")
	if err != nil {
		t.Fatalf("failed to query edges: %v", err)
	}
	return result
}
