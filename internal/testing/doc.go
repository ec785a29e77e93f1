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
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testing provides test helpers for ISG integration tests.
//
// It opens a real embedded CozoDB store (the "mem" engine, through CGO)
// with the ISG schema created, and seeds and reads isg_entity and
// isg_edge rows.
//
// # Quick Start
//
// Use SetupTestBackend to create an in-memory ISG backend with schema:
//
//	func TestMyFeature(t *testing.T) {
//	    backend := testing.SetupTestBackend(t)
//
//	    // Backend is ready with ISG schema initialized
//	    testing.InsertTestEntity(t, backend, "k1", "test.go#TestFunc", "function", "TestFunc", "test.go", 10, 20)
//
//	    // Query and verify
//	    result := testing.QueryEntities(t, backend)
//	    require.Len(t, result.Rows, 1)
//	}
//
// # Seeding Test Data
//
//   - InsertTestEntity: add one isg_entity row
//   - InsertTestEdge: add one isg_edge row
//
// # Querying Test Data
//
//   - QueryEntities: key and name of every isg_entity row
//   - QueryEdges: every isg_edge row
package testing
