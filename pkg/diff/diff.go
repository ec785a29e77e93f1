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

// Package diff implements the Diff Engine described in spec.md §4.8: turn
// pkg/ingestion's IdentityAssigner output into a human- and
// notification-facing change classification.
//
// This package never re-derives identity matching itself: EntityInput.PriorKey
// and IsNew are set by IdentityAssigner.Assign, the single source of truth for
// which prior entity (if any) an incoming one continues. Compute only
// interprets that decision into Added/Removed/Modified/Relocated/Unchanged, so
// its classification can never disagree with the birth_timestamp pairing the
// assigner actually made. It depends on no other package in this module, so
// pkg/ingestion can depend on it without an import cycle.
package diff

// ChangeKind classifies how an entity's observed state differs between two
// ingestion passes.
type ChangeKind string

const (
	Added     ChangeKind = "added"
	Removed   ChangeKind = "removed"
	Modified  ChangeKind = "modified"  // same identity, body hash differs
	Relocated ChangeKind = "relocated" // same identity, same body hash, line range moved
	Unchanged ChangeKind = "unchanged"
)

// PriorEntity is the minimal prior-state shape Compute needs to decide
// Modified vs. Relocated vs. Unchanged for a matched entity.
type PriorEntity struct {
	Key      string
	BodyHash string
}

// EntityInput is the minimal post-assignment shape Compute needs. Callers
// build this from ingestion.CodeEntity after IdentityAssigner.Assign has run.
type EntityInput struct {
	Key          string
	SemanticPath string
	BodyHash     string
	PriorKey     string // the prior entity this one continues; empty when IsNew or Removed
	IsNew        bool   // true iff BirthTimestamp was freshly minted, not reused
	Removed      bool   // true for tombstoned leftovers; Key is the prior key in this case
}

// EdgeInput is the minimal edge shape Compute needs for the set-difference
// pass. EdgeType is left as a plain string so this package carries no
// dependency on ingestion.EdgeType.
type EdgeInput struct {
	FromKey  string
	ToKey    string
	EdgeType string
}

// EntityChange describes one entity's fate across an ingestion pass.
type EntityChange struct {
	SemanticPath string
	Kind         ChangeKind
	Key          string // the entity's current key (post-assignment); empty for Removed
	PriorKey     string // the entity's key before this pass; empty for Added
}

// EdgeChange describes one dependency edge entering or leaving the graph.
type EdgeChange struct {
	FromKey  string
	ToKey    string
	EdgeType string
	Added    bool // false means the edge was removed
}

// Report is the full classification of one ingestion pass: every entity's
// fate plus the edge set delta.
type Report struct {
	Entities []EntityChange
	Edges    []EdgeChange
}

// Counts summarizes a Report for logging and CLI/HTTP responses. The
// external entities_modified contract field (spec.md §6) does not
// distinguish a body edit from a pure line-range shift, so Modified and
// Relocated are kept apart here but merged by ModifiedTotal.
type Counts struct {
	Added, Removed, Modified, Relocated, Unchanged int
	EdgesAdded, EdgesRemoved                        int
}

// ModifiedTotal is Modified+Relocated, matching the single entities_modified
// field the HTTP incremental-reindex response reports.
func (c Counts) ModifiedTotal() int { return c.Modified + c.Relocated }

// Summarize tallies a Report into Counts.
func (r Report) Summarize() Counts {
	var c Counts
	for _, e := range r.Entities {
		switch e.Kind {
		case Added:
			c.Added++
		case Removed:
			c.Removed++
		case Modified:
			c.Modified++
		case Relocated:
			c.Relocated++
		case Unchanged:
			c.Unchanged++
		}
	}
	for _, e := range r.Edges {
		if e.Added {
			c.EdgesAdded++
		} else {
			c.EdgesRemoved++
		}
	}
	return c
}

// Compute classifies every entity in assigned (the result of
// ingestion.IdentityAssigner.Assign, converted to EntityInput) against its
// prior observed state, and diffs priorEdges against incomingEdges by set
// difference.
func Compute(prior []PriorEntity, assigned []EntityInput, priorEdges, incomingEdges []EdgeInput) Report {
	priorByKey := make(map[string]PriorEntity, len(prior))
	for _, pe := range prior {
		priorByKey[pe.Key] = pe
	}

	changes := make([]EntityChange, 0, len(assigned))
	for _, e := range assigned {
		if e.Removed {
			changes = append(changes, EntityChange{
				SemanticPath: e.SemanticPath,
				Kind:         Removed,
				PriorKey:     e.Key,
			})
			continue
		}
		if e.IsNew || e.PriorKey == "" {
			changes = append(changes, EntityChange{
				SemanticPath: e.SemanticPath,
				Kind:         Added,
				Key:          e.Key,
			})
			continue
		}

		match, ok := priorByKey[e.PriorKey]
		if !ok {
			// The assigner named a prior key Compute wasn't given; treat
			// conservatively as Added rather than guess at a classification.
			changes = append(changes, EntityChange{
				SemanticPath: e.SemanticPath,
				Kind:         Added,
				Key:          e.Key,
			})
			continue
		}

		kind := Unchanged
		switch {
		case match.BodyHash != e.BodyHash:
			kind = Modified
		case match.Key != e.Key:
			kind = Relocated
		}
		changes = append(changes, EntityChange{
			SemanticPath: e.SemanticPath,
			Kind:         kind,
			Key:          e.Key,
			PriorKey:     e.PriorKey,
		})
	}

	return Report{
		Entities: changes,
		Edges:    diffEdges(priorEdges, incomingEdges),
	}
}

type edgeKey struct {
	from, to, typ string
}

func diffEdges(prior, incoming []EdgeInput) []EdgeChange {
	priorSet := make(map[edgeKey]bool, len(prior))
	for _, e := range prior {
		priorSet[edgeKey{e.FromKey, e.ToKey, e.EdgeType}] = true
	}
	incomingSet := make(map[edgeKey]bool, len(incoming))
	for _, e := range incoming {
		incomingSet[edgeKey{e.FromKey, e.ToKey, e.EdgeType}] = true
	}

	var changes []EdgeChange
	for k := range incomingSet {
		if !priorSet[k] {
			changes = append(changes, EdgeChange{FromKey: k.from, ToKey: k.to, EdgeType: k.typ, Added: true})
		}
	}
	for k := range priorSet {
		if !incomingSet[k] {
			changes = append(changes, EdgeChange{FromKey: k.from, ToKey: k.to, EdgeType: k.typ, Added: false})
		}
	}
	return changes
}
