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

// Package reindex implements the Incremental Re-Indexer described in
// spec.md §4.7: a state machine driven by pkg/watch's debounced batches,
// stepping Idle -> HashChecking -> Parsing -> Differencing -> Writing ->
// Notifying -> Idle for every batch of changed paths.
//
// pkg/watch already performs the debounce coalescing, so the Reindexer never
// enters Debouncing itself: it waits in Idle for the next batch, and a pass
// that fails returns to Idle without Notifying.
package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corvid-labs/isg/pkg/grammar"
	"github.com/corvid-labs/isg/pkg/ingestion"
	"github.com/corvid-labs/isg/pkg/watch"
)

// State is one phase of the Incremental Re-Indexer's state machine.
type State string

const (
	Idle         State = "idle"
	Debouncing   State = "debouncing"
	HashChecking State = "hash_checking"
	Parsing      State = "parsing"
	Differencing State = "differencing"
	Writing      State = "writing"
	Notifying    State = "notifying"
)

// Store is the Graph Store surface the re-indexer needs: the same Store
// ingestion.Driver writes through, reused here to read last-known file
// hashes for hash_delta.Compute.
type Store = ingestion.Store

// Result summarizes one completed re-index pass for Notifying subscribers.
type Result struct {
	Batch       watch.ChangedFilesBatch
	FilesHashed int
	FilesParsed int
	FilesRemoved int
	*ingestion.RunResult
}

// Reindexer drives the HashChecking -> Parsing -> Differencing -> Writing
// steps for each batch of changed paths a Watcher emits, and publishes a
// Result per batch for Notifying subscribers (e.g. internal/httpapi's
// notification surface, or CLI progress output).
type Reindexer struct {
	root   string
	driver *ingestion.Driver
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	state State

	results chan Result
}

// New builds a Reindexer over root, using driver to parse/assign/write and
// store to compute the hash delta.
func New(root string, driver *ingestion.Driver, store Store, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		root:    root,
		driver:  driver,
		store:   store,
		logger:  logger,
		state:   Idle,
		results: make(chan Result, 1),
	}
}

// State returns the re-indexer's current phase.
func (r *Reindexer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Results returns the channel of completed-pass summaries.
func (r *Reindexer) Results() <-chan Result {
	return r.results
}

func (r *Reindexer) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run consumes batches from changes until ctx is done or the channel
// closes, running one full state-machine pass per batch. Passes are
// strictly sequential: a batch arriving mid-pass waits for the channel
// buffer (or, once full, is coalesced by the Watcher's own debounce on the
// next event).
func (r *Reindexer) Run(ctx context.Context, changes <-chan watch.ChangedFilesBatch) {
	defer close(r.results)
	r.setState(Idle)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-changes:
			if !ok {
				return
			}
			cycleStart := time.Now()
			result, err := r.processBatch(ctx, batch)
			if err != nil {
				recordCycleFailure()
				r.logger.Warn("reindex.batch.error", "err", err, "paths", len(batch.Paths))
				r.setState(Idle)
				continue
			}
			recordCycleSuccess(result.FilesParsed, time.Since(cycleStart).Seconds())
			r.setState(Notifying)
			select {
			case r.results <- *result:
			case <-ctx.Done():
				return
			}
			r.setState(Idle)
		}
	}
}

// processBatch runs HashChecking -> Parsing -> Differencing -> Writing for
// one batch and returns the pass summary.
func (r *Reindexer) processBatch(ctx context.Context, batch watch.ChangedFilesBatch) (*Result, error) {
	r.setState(HashChecking)

	priorHashes, err := r.store.LoadFileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load file hashes: %w", err)
	}

	var toParse []ingestion.FileInfo
	var toRemove []string
	for _, abs := range batch.Paths {
		rel, relErr := filepath.Rel(r.root, abs)
		if relErr != nil {
			rel = abs
		}
		info, statErr := os.Stat(abs)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				toRemove = append(toRemove, rel)
				continue
			}
			r.logger.Warn("reindex.stat.error", "path", abs, "err", statErr)
			continue
		}
		if info.IsDir() {
			continue
		}
		lang, ok := grammar.DetectLanguage(abs)
		if !ok {
			continue
		}
		toParse = append(toParse, ingestion.FileInfo{
			Path:     rel,
			FullPath: abs,
			Size:     info.Size(),
			Language: ingestion.Language(lang),
		})
	}

	changes, err := ingestion.Compute(toParse, priorHashes)
	if err != nil {
		return nil, fmt.Errorf("hash delta: %w", err)
	}

	var changed []ingestion.FileInfo
	byPath := make(map[string]ingestion.FileInfo, len(toParse))
	for _, fi := range toParse {
		byPath[fi.Path] = fi
	}
	for _, c := range changes {
		if c.Type == ingestion.FileAdded || c.Type == ingestion.FileModified {
			changed = append(changed, byPath[c.Path])
		}
	}

	r.setState(Parsing)
	var runResult *ingestion.RunResult
	if len(changed) > 0 {
		runResult, err = r.driver.RunFiles(ctx, changed)
		if err != nil {
			return nil, fmt.Errorf("run files: %w", err)
		}
	} else {
		runResult = &ingestion.RunResult{}
	}

	r.setState(Differencing)
	// RunFiles already ran pkg/diff.Compute against the prior/assigned state
	// it loaded, so there is nothing left to do here beyond moving the state
	// machine forward; runResult's counts are that Report, summarized.

	r.setState(Writing)
	removedResult, err := r.driver.RemoveFiles(ctx, toRemove)
	if err != nil {
		return nil, fmt.Errorf("remove files: %w", err)
	}
	runResult.EntitiesRemoved += removedResult.EntitiesRemoved
	runResult.EdgesRemoved += removedResult.EdgesRemoved
	runResult.BatchesSent += removedResult.BatchesSent

	return &Result{
		Batch:        batch,
		FilesHashed:  len(toParse),
		FilesParsed:  len(changed),
		FilesRemoved: len(toRemove),
		RunResult:    runResult,
	}, nil
}

// WatchAndReindex is a convenience entry point wiring a Watcher directly
// into a Reindexer, matching the lifecycle the teacher's embedded MCP watch
// loop used: start the watcher, run the re-indexer over its Changes()
// channel until ctx is canceled.
func WatchAndReindex(ctx context.Context, root string, debounce time.Duration, driver *ingestion.Driver, store Store, logger *slog.Logger) (*Reindexer, error) {
	w, err := watch.New(root, logger, watch.WithDebounce(debounce))
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	r := New(root, driver, store, logger)
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	go r.Run(ctx, w.Changes())
	return r, nil
}
