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

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/corvid-labs/isg/pkg/diff"
)

// Store is the slice of storage.Backend the driver needs: reading prior
// entities/file hashes for identity assignment and hash-checking, and
// writing the mutation batches the Batcher produces. Kept narrow so the
// driver can be tested against a fake without pulling in CozoDB.
type Store interface {
	LoadPriorEntities(ctx context.Context) ([]CodeEntity, error)
	LoadFileHashes(ctx context.Context) (map[string]string, error)
	LoadEdgesFromKeys(ctx context.Context, fromKeys []string) ([]DependencyEdge, error)
	NextBirthTimestamp(ctx context.Context) (int64, error)
	WriteMutations(ctx context.Context, datalogScript string) error
}

// storeCounter adapts a Store to the Counter interface IdentityAssigner
// needs, so the assigner never depends on storage directly.
type storeCounter struct {
	ctx   context.Context
	store Store
}

func (c storeCounter) Next() (int64, error) { return c.store.NextBirthTimestamp(c.ctx) }

// Driver runs one full ingestion pass over a workspace: load files, extract
// entities, assign stable identities against prior state, and write the
// result through a Batcher. The same Driver instance serves both the
// initial full ingest and each incremental re-index triggered by
// pkg/reindex. It does not use CheckpointManager.
type Driver struct {
	loader    *RepoLoader
	extractor *Extractor
	registry  storeCounter
	batcher   *Batcher
	store     Store
	logger    *slog.Logger

	parseWorkers int
}

// NewDriver wires together a RepoLoader, Extractor, and Batcher over store.
func NewDriver(loader *RepoLoader, extractor *Extractor, store Store, batchTargetMutations, parseWorkers int, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if parseWorkers <= 0 {
		parseWorkers = runtime.GOMAXPROCS(0)
	}
	return &Driver{
		loader:       loader,
		extractor:    extractor,
		batcher:      NewBatcher(batchTargetMutations, 2<<20),
		store:        store,
		logger:       logger,
		parseWorkers: parseWorkers,
	}
}

// RunResult summarizes one driver pass for logging, metrics, and the CLI's
// human-readable summary.
type RunResult struct {
	FilesLoaded      int
	FilesSkipped     int
	EntitiesAdded    int
	EntitiesModified int
	EntitiesRemoved  int
	EdgesAdded       int
	EdgesRemoved     int
	EdgesUnresolved  int
	BatchesSent      int
	Duration         time.Duration
}

// Run executes a full pass: load every eligible file in rootPath, parse it,
// assign identities against whatever the store already holds, and write the
// diffed result. It does not do incremental hash-skipping itself — that is
// pkg/reindex's job, which calls RunFiles with a pre-filtered file list.
func (d *Driver) Run(ctx context.Context, rootPath string, excludeGlobs []string, maxFileSize int64) (*RunResult, error) {
	start := time.Now()
	loadResult, err := d.loader.LoadRepository(rootPath, excludeGlobs, maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	// Deterministic order so re-runs over an unchanged tree produce an
	// identical extraction order, which keeps ordinal-position matching in
	// the Identity Assigner stable.
	sort.Slice(loadResult.Files, func(i, j int) bool { return loadResult.Files[i].Path < loadResult.Files[j].Path })

	result, err := d.runFiles(ctx, loadResult.Files, false)
	if err != nil {
		return nil, err
	}
	result.FilesSkipped += len(loadResult.SkipReasons)
	result.Duration = time.Since(start)
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(result.Duration.Seconds())
	return result, nil
}

// RunFiles extracts, diffs, and writes the given files, parsed by a bounded
// worker pool (sequentially below eight files). This is pkg/reindex's entry point: files is a
// strict subset of the workspace (whatever hash_delta.Compute flagged as
// added or modified), so prior state is scoped to exactly those file paths
// before diffing — otherwise every entity in a file outside this batch
// would look like it vanished and get tombstoned. Use RemoveFiles for files
// hash_delta flagged as deleted.
func (d *Driver) RunFiles(ctx context.Context, files []FileInfo) (*RunResult, error) {
	return d.runFiles(ctx, files, true)
}

// RemoveFiles tombstones every prior entity belonging to paths and drops
// their isg_file_hash rows, without touching any other file's entities.
// pkg/reindex calls this for files hash_delta.Compute classifies as deleted.
func (d *Driver) RemoveFiles(ctx context.Context, paths []string) (*RunResult, error) {
	if len(paths) == 0 {
		return &RunResult{}, nil
	}
	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[p] = true
	}

	prior, err := d.store.LoadPriorEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prior entities: %w", err)
	}

	var tombstoned []CodeEntity
	for _, e := range prior {
		if pathSet[e.FilePath] {
			e.Removed = true
			tombstoned = append(tombstoned, e)
		}
	}

	tombstonedKeys := make([]string, len(tombstoned))
	for i, e := range tombstoned {
		tombstonedKeys[i] = e.Key
	}
	staleEdges, err := d.store.LoadEdgesFromKeys(ctx, tombstonedKeys)
	if err != nil {
		return nil, fmt.Errorf("load edges for removed files: %w", err)
	}

	var b stringsBuilder
	for _, e := range tombstoned {
		b.writef("?[key] <- [[%q]] :rm isg_entity { key }\n", e.Key)
	}
	for _, e := range staleEdges {
		b.writef("?[from_key, to_key, edge_type] <- [[%q, %q, %q]] :rm isg_edge { from_key, to_key, edge_type }\n", e.FromKey, e.ToKey, e.Type)
	}
	for p := range pathSet {
		b.writef("?[file_path] <- [[%q]] :rm isg_file_hash { file_path }\n", p)
	}

	batches, err := d.batcher.Batch(b.String())
	if err != nil {
		return nil, fmt.Errorf("batch mutations: %w", err)
	}
	for _, batch := range batches {
		if err := d.store.WriteMutations(ctx, batch); err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}
		recordBatchSent()
	}

	ingMetrics.init()
	ingMetrics.entitiesRemoved.Add(float64(len(tombstoned)))

	return &RunResult{
		EntitiesRemoved: len(tombstoned),
		EdgesRemoved:    len(staleEdges),
		BatchesSent:     len(batches),
	}, nil
}

// runFiles is the shared implementation behind Run and RunFiles. When
// scoped is true, prior state is narrowed to the file paths present in
// files before diffing; Run passes false since it always sees the entire
// workspace and relies on the full prior state to detect files deleted
// from disk since the last pass.
func (d *Driver) runFiles(ctx context.Context, files []FileInfo, scoped bool) (*RunResult, error) {
	parseStart := time.Now()
	extracted, err := d.parseFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	ingMetrics.init()
	ingMetrics.parseDuration.Observe(time.Since(parseStart).Seconds())

	var incoming []CodeEntity
	skipped := 0
	for _, r := range extracted {
		if r.Skipped {
			skipped++
			continue
		}
		incoming = append(incoming, r.Entities...)
	}

	diffStart := time.Now()
	prior, err := d.store.LoadPriorEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prior entities: %w", err)
	}
	if scoped {
		fileSet := make(map[string]bool, len(files))
		for _, fi := range files {
			fileSet[fi.Path] = true
		}
		scopedPrior := prior[:0:0]
		for _, e := range prior {
			if fileSet[e.FilePath] {
				scopedPrior = append(scopedPrior, e)
			}
		}
		prior = scopedPrior
	}
	priorKeys := make([]string, len(prior))
	for i, e := range prior {
		priorKeys[i] = e.Key
	}
	priorEdges, err := d.store.LoadEdgesFromKeys(ctx, priorKeys)
	if err != nil {
		return nil, fmt.Errorf("load prior edges: %w", err)
	}

	assigner := NewIdentityAssigner(storeCounter{ctx: ctx, store: d.store})
	assigned, err := assigner.Assign(prior, incoming)
	if err != nil {
		return nil, fmt.Errorf("assign identities: %w", err)
	}
	ingMetrics.diffDuration.Observe(time.Since(diffStart).Seconds())

	var incomingEdges []DependencyEdge
	for _, r := range extracted {
		incomingEdges = append(incomingEdges, r.Edges...)
	}

	report := diff.Compute(toPriorEntities(prior), toEntityInputs(assigned), toEdgeInputs(priorEdges), toEdgeInputs(incomingEdges))
	counts := report.Summarize()
	staleEdges := fromEdgeChanges(report.Edges)

	script := buildMutationScript(assigned, extracted, staleEdges)
	batches, err := d.batcher.Batch(script)
	if err != nil {
		return nil, fmt.Errorf("batch mutations: %w", err)
	}

	writeStart := time.Now()
	for _, batch := range batches {
		if err := d.store.WriteMutations(ctx, batch); err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}
		recordBatchSent()
	}
	ingMetrics.writeDuration.Observe(time.Since(writeStart).Seconds())

	unresolved := 0
	for _, r := range extracted {
		for _, e := range r.Edges {
			if e.ToKey == UnknownKey {
				unresolved++
				recordEdgeUnresolved()
			}
		}
	}

	entitiesModified := counts.ModifiedTotal()
	ingMetrics.entitiesAdded.Add(float64(counts.Added))
	ingMetrics.entitiesModified.Add(float64(entitiesModified))
	ingMetrics.entitiesRemoved.Add(float64(counts.Removed))

	return &RunResult{
		FilesLoaded:      len(files),
		FilesSkipped:     skipped,
		EntitiesAdded:    counts.Added,
		EntitiesModified: entitiesModified,
		EntitiesRemoved:  counts.Removed,
		EdgesAdded:       counts.EdgesAdded,
		EdgesRemoved:     counts.EdgesRemoved,
		EdgesUnresolved:  unresolved,
		BatchesSent:      len(batches),
	}, nil
}

// toPriorEntities, toEntityInputs, and toEdgeInputs adapt this package's
// concrete CodeEntity/DependencyEdge into pkg/diff's minimal input shapes.
// pkg/diff depends on nothing in this module, so the conversion runs in this
// direction to avoid an import cycle.
func toPriorEntities(entities []CodeEntity) []diff.PriorEntity {
	out := make([]diff.PriorEntity, len(entities))
	for i, e := range entities {
		out[i] = diff.PriorEntity{Key: e.Key, BodyHash: e.BodyHash}
	}
	return out
}

func toEntityInputs(entities []CodeEntity) []diff.EntityInput {
	out := make([]diff.EntityInput, len(entities))
	for i, e := range entities {
		out[i] = diff.EntityInput{
			Key:          e.Key,
			SemanticPath: e.SemanticPath,
			BodyHash:     e.BodyHash,
			PriorKey:     e.PriorKey,
			IsNew:        e.IsNew,
			Removed:      e.Removed,
		}
	}
	return out
}

func toEdgeInputs(edges []DependencyEdge) []diff.EdgeInput {
	out := make([]diff.EdgeInput, len(edges))
	for i, e := range edges {
		out[i] = diff.EdgeInput{FromKey: e.FromKey, ToKey: e.ToKey, EdgeType: string(e.Type)}
	}
	return out
}

// fromEdgeChanges extracts the edges pkg/diff classified as removed, which
// buildMutationScript must explicitly :rm since re-extracting a file only
// :put's the edges it still emits and never implies removal of the ones it
// dropped.
func fromEdgeChanges(changes []diff.EdgeChange) []DependencyEdge {
	var stale []DependencyEdge
	for _, c := range changes {
		if c.Added {
			continue
		}
		stale = append(stale, DependencyEdge{FromKey: c.FromKey, ToKey: c.ToKey, Type: EdgeType(c.EdgeType)})
	}
	return stale
}

// parseFiles extracts every file, fanning out over a bounded worker pool for
// large file sets and running sequentially for small ones, matching the
// teacher's parallel/sequential split: pool setup overhead isn't worth it
// below a small file count.
func (d *Driver) parseFiles(ctx context.Context, files []FileInfo) ([]*ExtractResult, error) {
	if len(files) < 8 {
		return d.parseFilesSequential(ctx, files)
	}
	return d.parseFilesParallel(ctx, files)
}

func (d *Driver) parseFilesSequential(ctx context.Context, files []FileInfo) ([]*ExtractResult, error) {
	results := make([]*ExtractResult, len(files))
	for i, fi := range files {
		r, err := d.extractor.ExtractFile(ctx, fi)
		if err != nil {
			d.logger.Warn("driver.extract_failed", "path", fi.Path, "err", err)
			continue
		}
		results[i] = r
	}
	return compact(results), nil
}

func (d *Driver) parseFilesParallel(ctx context.Context, files []FileInfo) ([]*ExtractResult, error) {
	results := make([]*ExtractResult, len(files))
	sem := make(chan struct{}, d.parseWorkers)
	var wg sync.WaitGroup
	for i, fi := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, f FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()
			r, err := d.extractor.ExtractFile(ctx, f)
			if err != nil {
				d.logger.Warn("driver.extract_failed", "path", f.Path, "err", err)
				return
			}
			results[idx] = r
		}(i, fi)
	}
	wg.Wait()
	return compact(results), nil
}

func compact(results []*ExtractResult) []*ExtractResult {
	out := make([]*ExtractResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// buildMutationScript renders assigned entities and their edges as a Cozo
// Datalog script. Kept deliberately simple: one :put per relation per
// record, relying on the Batcher to split the script into size-bounded
// batches before it reaches storage.
func buildMutationScript(entities []CodeEntity, extracted []*ExtractResult, staleEdges []DependencyEdge) string {
	var b stringsBuilder
	for _, e := range entities {
		if e.Removed {
			b.writef("?[key] <- [[%q]] :rm isg_entity { key }\n", e.Key)
			continue
		}
		b.writef(
			"?[key, semantic_path, kind, language, name, file_path, line_start, line_end, signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp] <- [[%q, %q, %q, %q, %q, %q, %d, %d, %q, %q, %q, %q, %t, %d]] :put isg_entity { key, semantic_path, kind, language, name, file_path, line_start, line_end, signature_text, body_text, body_hash, parent_scope, is_test, birth_timestamp }\n",
			e.Key, e.SemanticPath, e.Kind, e.Language, e.Name, e.FilePath, e.LineStart, e.LineEnd, e.SignatureText, e.BodyText, e.BodyHash, e.ParentScope, e.IsTest, e.BirthTimestamp,
		)
	}
	for _, edge := range staleEdges {
		b.writef("?[from_key, to_key, edge_type] <- [[%q, %q, %q]] :rm isg_edge { from_key, to_key, edge_type }\n", edge.FromKey, edge.ToKey, edge.Type)
	}
	for _, r := range extracted {
		for _, edge := range r.Edges {
			b.writef("?[from_key, to_key, edge_type] <- [[%q, %q, %q]] :put isg_edge { from_key, to_key, edge_type }\n", edge.FromKey, edge.ToKey, edge.Type)
		}
		b.writef("?[file_path, hash] <- [[%q, %q]] :put isg_file_hash { file_path, hash }\n", r.FilePath, r.ContentHash)
	}
	return b.String()
}

// stringsBuilder is a thin wrapper so buildMutationScript reads as a series
// of writef calls instead of repeated fmt.Sprintf + WriteString pairs.
type stringsBuilder struct {
	buf []byte
}

func (s *stringsBuilder) writef(format string, args ...any) {
	s.buf = append(s.buf, []byte(fmt.Sprintf(format, args...))...)
}

func (s *stringsBuilder) String() string { return string(s.buf) }
