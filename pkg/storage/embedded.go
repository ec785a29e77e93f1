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

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cozo "github.com/corvid-labs/isg/pkg/cozodb"
)

// EmbeddedBackend implements Backend using a local CozoDB instance. This is
// the only backend the interface signature graph ships: a single writer,
// many readers, one process per workspace (spec.md §5).
type EmbeddedBackend struct {
	db     *cozo.CozoDB
	mu     sync.RWMutex
	closed bool
}

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory where CozoDB stores its data.
	// Defaults to ~/.isg/data/<project_id>
	DataDir string

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	// Defaults to "rocksdb" for persistence.
	Engine string

	// ProjectID is used to namespace the data directory.
	ProjectID string
}

// NewEmbeddedBackend creates a new embedded CozoDB backend.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	// Set defaults
	if config.Engine == "" {
		config.Engine = "rocksdb"
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".isg", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Open CozoDB
	db, err := cozo.New(config.Engine, config.DataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}

	return &EmbeddedBackend{
		db: &db,
	}, nil
}

// Query executes a read-only Datalog query.
func (b *EmbeddedBackend) Query(ctx context.Context, datalog string) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.db.RunReadOnly(datalog, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return FromNamedRows(result), nil
}

// Execute runs a Datalog mutation.
func (b *EmbeddedBackend) Execute(ctx context.Context, datalog string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := b.db.Run(datalog, nil)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.db.Close()
	return nil
}

// DB returns the underlying CozoDB instance for advanced operations.
// Use with caution - prefer the Backend interface methods.
func (b *EmbeddedBackend) DB() *cozo.CozoDB {
	return b.db
}

// EnsureSchema creates the ISG relations if they don't exist. Idempotent:
// CozoDB reports "already exists" on a repeat :create, which this ignores.
func (b *EmbeddedBackend) EnsureSchema() error {
	relations := []string{
		// One row per live or tombstoned code entity. key is the unstable
		// external identifier; semantic_path and birth_timestamp are what
		// survive across re-index.
		`:create isg_entity {
			key: String
			=>
			semantic_path: String,
			kind: String,
			language: String,
			name: String,
			file_path: String,
			line_start: Int,
			line_end: Int,
			signature_text: String,
			body_text: String,
			body_hash: String,
			parent_scope: String,
			is_test: Bool,
			birth_timestamp: Int,
			removed: Bool default false,
		}`,
		// Directed dependency edges between entity keys. to_key may be the
		// "unknown:0-0" sentinel when resolution fails.
		`:create isg_edge {
			from_key: String,
			to_key: String,
			edge_type: String
			=>
		}`,
		// Last-known content hash per file, consulted by the
		// Incremental Re-Indexer's HashChecking phase.
		`:create isg_file_hash {
			file_path: String
			=>
			hash: String,
		}`,
		// Single-row monotonic counter backing birth_timestamp assignment.
		`:create isg_counter {
			name: String
			=>
			value: Int,
		}`,
		// Derived cache: incoming-edge (fan-in) count per entity, recomputed
		// by RefreshFanInCache (queries.go) before each ComplexityHotspots read.
		`:create isg_fanin_cache {
			key: String
			=>
			fan_in: Int,
		}`,
		// Derived cache: community/cluster assignment per entity.
		`:create isg_cluster_cache {
			key: String
			=>
			cluster_id: Int,
		}`,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, rel := range relations {
		if _, err := b.db.Run(rel, nil); err != nil {
			continue // already exists
		}
	}

	existing, err := b.db.Run(`?[name, value] := *isg_counter{name: "birth_timestamp", value}`, nil)
	if err != nil {
		return fmt.Errorf("check counter: %w", err)
	}
	if len(existing.Rows) == 0 {
		if _, err := b.db.Run(`?[name, value] <- [["birth_timestamp", 0]] :put isg_counter { name => value }`, nil); err != nil {
			return fmt.Errorf("seed counter: %w", err)
		}
	}

	return nil
}
