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

// Package watch implements the File Watcher described in spec.md §4.6: an
// OS-level recursive watch over a workspace root that coalesces bursts of
// filesystem events into debounced batches of changed paths for the
// Incremental Re-Indexer to consume.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the coalescing window between the first filesystem
// event in a burst and the batch being emitted on Changes().
const DefaultDebounce = 500 * time.Millisecond

var defaultSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "target": true,
	"dist": true, "build": true, "bin": true, ".isg": true,
	".idea": true, ".vscode": true, ".next": true, ".nuxt": true,
}

// ChangedFilesBatch is one coalesced group of changed paths, ready to be
// handed to the Incremental Re-Indexer's HashChecking stage.
type ChangedFilesBatch struct {
	Paths []string
	At    time.Time
}

// Watcher recursively watches a workspace root and emits debounced batches
// of changed file paths. A Watcher can be Closed and a fresh one started
// again over the same root; it holds no state that survives Close.
type Watcher struct {
	root     string
	debounce time.Duration
	skipDirs map[string]bool
	logger   *slog.Logger

	fsw     *fsnotify.Watcher
	changes chan ChangedFilesBatch
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithSkipDirs adds directory base names to skip in addition to the
// built-in set (.git, node_modules, vendor, build artifacts, ...).
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.skipDirs[n] = true
		}
	}
}

// New creates a Watcher over root. The returned Watcher is not yet
// watching; call Start to begin emitting batches.
func New(root string, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		skipDirs: make(map[string]bool, len(defaultSkipDirs)),
		logger:   logger,
		fsw:      fsw,
		changes:  make(chan ChangedFilesBatch, 1),
		done:     make(chan struct{}),
	}
	for name := range defaultSkipDirs {
		w.skipDirs[name] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start walks root adding every non-skipped directory to the watch set,
// then launches the debounce loop. Start must be called at most once per
// Watcher; create a new Watcher to restart watching after Close.
func (w *Watcher) Start(ctx context.Context) error {
	watched, skipped := w.addTree(w.root)
	w.logger.Info("watch.start", "root", w.root, "dirs_watched", watched, "dirs_skipped", skipped)

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Changes returns the channel of coalesced changed-path batches. The
// channel is closed when the Watcher is closed or its context is done.
func (w *Watcher) Changes() <-chan ChangedFilesBatch {
	return w.changes
}

// Close stops the watch and releases OS resources. Safe to call more than
// once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) addTree(root string) (watched, skipped int) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if w.skipDirs[base] || (strings.HasPrefix(base, ".") && path != root) {
			skipped++
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.logger.Warn("watch.add_dir.error", "path", path, "err", addErr)
			if os.IsPermission(addErr) {
				return filepath.SkipDir
			}
			return nil
		}
		watched++
		return nil
	})
	return watched, skipped
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.changes)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := ChangedFilesBatch{Paths: make([]string, 0, len(pending)), At: time.Now()}
		for p := range pending {
			batch.Paths = append(batch.Paths, p)
		}
		pending = make(map[string]struct{})
		select {
		case w.changes <- batch:
		case <-ctx.Done():
		case <-w.done:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
				if event.Op&(fsnotify.Create) != 0 {
					w.addTree(event.Name)
				}
				continue
			}
			pending[event.Name] = struct{}{}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.fsnotify.error", "err", err)
		case <-timerC:
			timerC = nil
			flush()
		}
	}
}
