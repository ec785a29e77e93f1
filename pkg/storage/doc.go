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

// Package storage implements the graph store described in spec.md §4.4: a
// single-writer, many-reader embedded Datalog database holding the
// interface signature graph's entities and dependency edges.
//
// # Quick Start
//
//	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
//	    DataDir: "/path/to/.isg/data",
//	    Engine:  "rocksdb",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	if err := backend.EnsureSchema(); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := backend.Query(ctx, `
//	    ?[name, file_path] := *isg_entity{name, file_path, kind: "function"}
//	    :limit 10
//	`)
//
// # Relations
//
//	isg_entity        - code entities, live and tombstoned
//	isg_edge          - dependency edges between entity keys
//	isg_file_hash     - last-known content hash per file
//	isg_counter       - monotonic birth_timestamp counter
//	isg_fanin_cache   - derived: incoming-edge count per entity
//	isg_cluster_cache - derived: community assignment per entity
//
// # Query vs Execute
//
// Query runs with immutable_query=true and is used by the HTTP query API.
// Execute allows mutation; it is used by pkg/ingestion's Driver (through
// IngestionStore) and by the derived-cache refreshes in queries.go.
//
// # Thread Safety
//
// EmbeddedBackend is safe for concurrent use: reads take a shared lock,
// writes take an exclusive one, matching the single-writer/many-reader
// model spec.md §5 requires.
//
// # Ingestion Adapter
//
// IngestionStore adapts an EmbeddedBackend to pkg/ingestion.Store, so the
// ingestion package never imports pkg/storage directly.
package storage
