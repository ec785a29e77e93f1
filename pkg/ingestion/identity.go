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

package ingestion

import "sort"

// Counter hands out monotonically increasing birth timestamps. The Graph
// Store backs this with the isg_counter relation so it survives restarts;
// tests use an in-memory counter.
type Counter interface {
	Next() (int64, error)
}

// IdentityAssigner matches freshly extracted entities against the prior
// state of a semantic_path group to decide whether an entity is the same
// logical declaration (keeps its birth_timestamp) or a new one (gets a
// fresh birth_timestamp from counter).
//
// Matching within a semantic_path group follows two passes, exactly as
// spec.md §4.3 describes: first match by BodyHash (a pure content move is
// always the same entity), then match remaining candidates by ordinal
// position within the group (a body edit at the same position is still
// the same entity). Anything left over on the incoming side is fresh;
// anything left over on the prior side is tombstoned (Removed = true).
type IdentityAssigner struct {
	counter Counter
}

// NewIdentityAssigner builds an assigner backed by the given counter.
func NewIdentityAssigner(counter Counter) *IdentityAssigner {
	return &IdentityAssigner{counter: counter}
}

// Assign returns a copy of every incoming entity with BirthTimestamp, IsNew,
// and PriorKey filled, followed by every prior entity that was not matched,
// marked Removed (tombstoned); incoming itself is not modified. pkg/diff.Compute consumes IsNew/PriorKey
// directly rather than re-deriving a match, so its classification can never
// disagree with the pairing decided here. Grouping incoming and prior by
// semantic_path is NOT required of the caller: Assign groups internally.
func (a *IdentityAssigner) Assign(prior, incoming []CodeEntity) ([]CodeEntity, error) {
	priorByPath := groupBySemanticPath(prior)
	incomingByPath := groupBySemanticPath(incoming)

	var tombstoned []CodeEntity
	result := make([]CodeEntity, 0, len(incoming))

	for path, incGroup := range incomingByPath {
		priGroup := priorByPath[path]
		matched, leftoverPrior, err := a.assignGroup(priGroup, incGroup)
		if err != nil {
			return nil, err
		}
		result = append(result, matched...)
		tombstoned = append(tombstoned, leftoverPrior...)
	}

	// semantic_paths present only in prior (file/function deleted entirely)
	for path, priGroup := range priorByPath {
		if _, ok := incomingByPath[path]; ok {
			continue
		}
		for _, e := range priGroup {
			e.Removed = true
			tombstoned = append(tombstoned, e)
		}
	}

	return append(result, tombstoned...), nil
}

// assignGroup runs the hash-match-then-ordinal-match algorithm within a
// single semantic_path bucket.
func (a *IdentityAssigner) assignGroup(prior, incoming []CodeEntity) (matched, leftoverPrior []CodeEntity, err error) {
	priorUsed := make([]bool, len(prior))
	matched = make([]CodeEntity, len(incoming))
	assignedIdx := make([]bool, len(incoming))

	// Pass 1: hash match.
	for i, inc := range incoming {
		for j, pr := range prior {
			if priorUsed[j] {
				continue
			}
			if pr.BodyHash == inc.BodyHash && pr.BodyHash != "" {
				inc.BirthTimestamp = pr.BirthTimestamp
				inc.PriorKey = pr.Key
				matched[i] = inc
				assignedIdx[i] = true
				priorUsed[j] = true
				break
			}
		}
	}

	// Pass 2: ordinal-position match among what remains, in declaration order.
	remainingPrior := make([]int, 0, len(prior))
	for j := range prior {
		if !priorUsed[j] {
			remainingPrior = append(remainingPrior, j)
		}
	}
	remainingIncoming := make([]int, 0, len(incoming))
	for i := range incoming {
		if !assignedIdx[i] {
			remainingIncoming = append(remainingIncoming, i)
		}
	}
	for k := 0; k < len(remainingPrior) && k < len(remainingIncoming); k++ {
		j := remainingPrior[k]
		i := remainingIncoming[k]
		inc := incoming[i]
		inc.BirthTimestamp = prior[j].BirthTimestamp
		inc.PriorKey = prior[j].Key
		matched[i] = inc
		assignedIdx[i] = true
		priorUsed[j] = true
	}

	// Anything still unassigned on the incoming side is a fresh entity.
	for i, ok := range assignedIdx {
		if ok {
			continue
		}
		ts, e := a.counter.Next()
		if e != nil {
			return nil, nil, e
		}
		inc := incoming[i]
		inc.BirthTimestamp = ts
		inc.IsNew = true
		matched[i] = inc
	}

	for j, used := range priorUsed {
		if !used {
			pr := prior[j]
			pr.Removed = true
			leftoverPrior = append(leftoverPrior, pr)
		}
	}

	return matched, leftoverPrior, nil
}

func groupBySemanticPath(entities []CodeEntity) map[string][]CodeEntity {
	m := make(map[string][]CodeEntity)
	for _, e := range entities {
		m[e.SemanticPath] = append(m[e.SemanticPath], e)
	}
	for path := range m {
		group := m[path]
		sort.SliceStable(group, func(i, j int) bool { return group[i].LineStart < group[j].LineStart })
		m[path] = group
	}
	return m
}
