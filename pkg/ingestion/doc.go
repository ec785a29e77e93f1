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

// Package ingestion extracts a code entity graph from a workspace and keeps
// it in sync with the files on disk.
//
// # Pipeline
//
// A run moves through four stages:
//
//  1. Discovery: RepoLoader walks the workspace, applying ignore globs and
//     the max-file-size bound, and classifies each file's language via
//     pkg/grammar.
//  2. Extraction: Extractor parses each file with tree-sitter and produces
//     raw CodeEntity and DependencyEdge records. Parsing is error-tolerant;
//     name resolution for edges is syntactic and same-file only, falling
//     back to the unknown:0-0 sentinel for anything it can't resolve.
//  3. Identity assignment: IdentityAssigner matches freshly extracted
//     entities against the prior state of their semantic_path group by
//     body hash, then by ordinal position, so a birth_timestamp survives
//     edits and moves. Unmatched prior entities are tombstoned.
//  4. Write: Driver renders the assigned entities and edges as a Datalog
//     mutation script, splits it with Batcher, and writes it through the
//     Store interface.
//
// Driver.Run performs a full pass over every eligible file in the
// workspace. Driver.RunFiles takes a pre-filtered file list and is what
// pkg/reindex calls after hash_delta.Compute narrows a change batch down to
// the files that actually need re-parsing.
//
// # Checkpointing
//
// CheckpointManager loads, saves and clears a JSON record of an ingest's
// progress. Driver does not call it, so an interrupted ingest parses every
// file again on the next run. It is not used on the incremental re-index
// path either.
package ingestion
