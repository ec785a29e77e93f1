// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/corvid-labs/isg/pkg/ingestion"
)

// IngestionStore adapts an EmbeddedBackend to pkg/ingestion.Store, so the
// ingestion driver never imports pkg/storage directly and stays testable
// against a fake. This is the only file in pkg/storage that knows about the
// ingestion package's entity shape.
type IngestionStore struct {
	backend *EmbeddedBackend
}

// NewIngestionStore wraps backend for use by ingestion.Driver.
func NewIngestionStore(backend *EmbeddedBackend) *IngestionStore {
	return &IngestionStore{backend: backend}
}

var _ ingestion.Store = (*IngestionStore)(nil)

// LoadPriorEntities returns every non-tombstoned entity currently stored,
// for the Identity Assigner to match the incoming batch against.
func (s *IngestionStore) LoadPriorEntities(ctx context.Context) ([]ingestion.CodeEntity, error) {
	res, err := s.backend.Query(ctx, `
		?[key, semantic_path, kind, language, name, file_path, line_start, line_end,
		  signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp] :=
			*isg_entity{key, semantic_path, kind, language, name, file_path, line_start, line_end,
			  signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp, removed},
			removed == false
	`)
	if err != nil {
		return nil, fmt.Errorf("load prior entities: %w", err)
	}

	entities := make([]ingestion.CodeEntity, 0, len(res.Rows))
	for _, row := range res.Rows {
		e, err := entityFromRow(row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// LoadFileHashes returns the last-recorded content hash per file path, for
// hash_delta.Compute.
func (s *IngestionStore) LoadFileHashes(ctx context.Context) (map[string]string, error) {
	res, err := s.backend.Query(ctx, `?[file_path, hash] := *isg_file_hash{file_path, hash}`)
	if err != nil {
		return nil, fmt.Errorf("load file hashes: %w", err)
	}
	hashes := make(map[string]string, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) != 2 {
			continue
		}
		path, _ := row[0].(string)
		hash, _ := row[1].(string)
		hashes[path] = hash
	}
	return hashes, nil
}

// LoadEdgesFromKeys returns every stored edge whose from_key is in fromKeys,
// used by the driver to diff the edge set attached to the entities it is
// about to reprocess. Empty input returns an empty slice without a query.
func (s *IngestionStore) LoadEdgesFromKeys(ctx context.Context, fromKeys []string) ([]ingestion.DependencyEdge, error) {
	if len(fromKeys) == 0 {
		return nil, nil
	}
	seeds := make([]string, len(fromKeys))
	for i, k := range fromKeys {
		seeds[i] = fmt.Sprintf("[%q]", k)
	}
	script := fmt.Sprintf(`
		seed[from_key] <- [%s]
		?[from_key, to_key, edge_type] := seed[from_key], *isg_edge{from_key, to_key, edge_type}
	`, strings.Join(seeds, ", "))

	res, err := s.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("load edges from keys: %w", err)
	}
	edges := make([]ingestion.DependencyEdge, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) != 3 {
			continue
		}
		from, _ := row[0].(string)
		to, _ := row[1].(string)
		typ, _ := row[2].(string)
		edges = append(edges, ingestion.DependencyEdge{FromKey: from, ToKey: to, Type: ingestion.EdgeType(typ)})
	}
	return edges, nil
}

// NextBirthTimestamp increments and returns the isg_counter
// "birth_timestamp" value. The read and the write are two separate backend
// calls, so the increment is not atomic across concurrent callers.
func (s *IngestionStore) NextBirthTimestamp(ctx context.Context) (int64, error) {
	res, err := s.backend.Query(ctx, `
		?[value] := *isg_counter{name: "birth_timestamp", value}
	`)
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	var current int64
	if len(res.Rows) == 1 {
		if v, ok := res.Rows[0][0].(float64); ok {
			current = int64(v)
		}
	}
	next := current + 1
	if err := s.backend.Execute(ctx, fmt.Sprintf(
		`?[name, value] <- [["birth_timestamp", %d]] :put isg_counter { name => value }`, next,
	)); err != nil {
		return 0, fmt.Errorf("advance counter: %w", err)
	}
	return next, nil
}

// WriteMutations executes one already-batched Datalog mutation script.
func (s *IngestionStore) WriteMutations(ctx context.Context, datalogScript string) error {
	return s.backend.Execute(ctx, datalogScript)
}

func entityFromRow(row []any) (ingestion.CodeEntity, error) {
	if len(row) != 14 {
		return ingestion.CodeEntity{}, fmt.Errorf("unexpected entity row shape: %d columns", len(row))
	}
	str := func(v any) string { s, _ := v.(string); return s }
	i := func(v any) int {
		f, _ := v.(float64)
		return int(f)
	}
	i64 := func(v any) int64 {
		f, _ := v.(float64)
		return int64(f)
	}
	b := func(v any) bool { ok, _ := v.(bool); return ok }

	return ingestion.CodeEntity{
		Key:            str(row[0]),
		SemanticPath:   str(row[1]),
		Kind:           ingestion.EntityType(str(row[2])),
		Language:       ingestion.Language(str(row[3])),
		Name:           str(row[4]),
		FilePath:       str(row[5]),
		LineStart:      i(row[6]),
		LineEnd:        i(row[7]),
		SignatureText:  str(row[8]),
		BodyText:       str(row[9]),
		BodyHash:       str(row[10]),
		ParentScope:    str(row[11]),
		IsTest:         b(row[12]),
		BirthTimestamp: i64(row[13]),
	}, nil
}
