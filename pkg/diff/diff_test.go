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

package diff

import "testing"

func countKinds(r Report) map[ChangeKind]int {
	out := make(map[ChangeKind]int)
	for _, e := range r.Entities {
		out[e.Kind]++
	}
	return out
}

func TestCompute_Added(t *testing.T) {
	assigned := []EntityInput{
		{Key: "k1", SemanticPath: "a#f", BodyHash: "h1", IsNew: true},
	}
	report := Compute(nil, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Added] != 1 {
		t.Errorf("Added = %d, want 1", kinds[Added])
	}
	counts := report.Summarize()
	if counts.Added != 1 {
		t.Errorf("Counts.Added = %d, want 1", counts.Added)
	}
}

func TestCompute_Removed(t *testing.T) {
	assigned := []EntityInput{
		{Key: "k1", SemanticPath: "a#f", Removed: true},
	}
	report := Compute(nil, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Removed] != 1 {
		t.Errorf("Removed = %d, want 1", kinds[Removed])
	}
}

func TestCompute_ModifiedWhenHashDiffers(t *testing.T) {
	prior := []PriorEntity{{Key: "prior-1", BodyHash: "old-hash"}}
	assigned := []EntityInput{
		{Key: "prior-1", SemanticPath: "a#f", BodyHash: "new-hash", PriorKey: "prior-1"},
	}
	report := Compute(prior, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Modified] != 1 {
		t.Errorf("Modified = %d, want 1", kinds[Modified])
	}
}

func TestCompute_RelocatedWhenOnlyKeyChanges(t *testing.T) {
	prior := []PriorEntity{{Key: "old-key", BodyHash: "same-hash"}}
	assigned := []EntityInput{
		{Key: "new-key", SemanticPath: "a#f", BodyHash: "same-hash", PriorKey: "old-key"},
	}
	report := Compute(prior, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Relocated] != 1 {
		t.Errorf("Relocated = %d, want 1", kinds[Relocated])
	}
	if report.Summarize().ModifiedTotal() != 1 {
		t.Errorf("ModifiedTotal should fold Relocated in, per spec.md §8 scenario 1")
	}
}

func TestCompute_Unchanged(t *testing.T) {
	prior := []PriorEntity{{Key: "k1", BodyHash: "h1"}}
	assigned := []EntityInput{
		{Key: "k1", SemanticPath: "a#f", BodyHash: "h1", PriorKey: "k1"},
	}
	report := Compute(prior, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Unchanged] != 1 {
		t.Errorf("Unchanged = %d, want 1", kinds[Unchanged])
	}
}

func TestCompute_PriorKeyMissingFallsBackToAdded(t *testing.T) {
	// PriorKey set but absent from the prior set passed in (e.g. caller
	// forgot to scope prior correctly): must not panic or silently drop.
	assigned := []EntityInput{
		{Key: "k1", SemanticPath: "a#f", BodyHash: "h1", PriorKey: "ghost"},
	}
	report := Compute(nil, assigned, nil, nil)
	kinds := countKinds(report)
	if kinds[Added] != 1 {
		t.Errorf("Added = %d, want 1 (conservative fallback)", kinds[Added])
	}
}

func TestCompute_EdgeSetDifference(t *testing.T) {
	prior := []EdgeInput{
		{FromKey: "a", ToKey: "b", EdgeType: "calls"},
		{FromKey: "a", ToKey: "c", EdgeType: "calls"},
	}
	incoming := []EdgeInput{
		{FromKey: "a", ToKey: "b", EdgeType: "calls"},
		{FromKey: "a", ToKey: "d", EdgeType: "calls"},
	}
	report := Compute(nil, nil, prior, incoming)
	var added, removed int
	for _, e := range report.Edges {
		if e.Added {
			added++
		} else {
			removed++
		}
	}
	if added != 1 {
		t.Errorf("edges added = %d, want 1 (a->d)", added)
	}
	if removed != 1 {
		t.Errorf("edges removed = %d, want 1 (a->c)", removed)
	}
	counts := report.Summarize()
	if counts.EdgesAdded != 1 || counts.EdgesRemoved != 1 {
		t.Errorf("Counts edges = %+v, want 1/1", counts)
	}
}
