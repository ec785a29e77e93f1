// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvid-labs/isg/internal/ui"
	"github.com/corvid-labs/isg/pkg/reindex"
)

func runWatch(args []string, root string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: isg watch [options]\n\nWatches the workspace root for file changes and reindexes affected\nfiles incrementally until interrupted.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := slog.Default()
	ws, err := openWorkspace(root, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ws.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reindexer, err := reindex.WatchAndReindex(ctx, root, ws.cfg.Debounce(), ws.driver, ws.store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: start watcher: %v\n", err)
		os.Exit(1)
	}

	if !globals.JSON {
		ui.Successf("Watching %s (debounce %s)", root, ws.cfg.Debounce())
		fmt.Println("  press ctrl-c to stop")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-reindexer.Results():
			if !ok {
				return
			}
			reportReindexResult(result, globals)
		}
	}
}

func reportReindexResult(result *reindex.Result, globals GlobalFlags) {
	if globals.JSON {
		printJSON(map[string]any{
			"files_hashed":      result.FilesHashed,
			"files_parsed":      result.FilesParsed,
			"files_removed":     result.FilesRemoved,
			"entities_added":    result.EntitiesAdded,
			"entities_modified": result.EntitiesModified,
			"entities_removed":  result.EntitiesRemoved,
			"edges_added":       result.EdgesAdded,
			"edges_removed":     result.EdgesRemoved,
			"batches_sent":      result.BatchesSent,
		})
		return
	}
	fmt.Printf("reindexed: %d hashed, %d parsed, %d removed | entities +%d ~%d -%d | edges +%d -%d\n",
		result.FilesHashed, result.FilesParsed, result.FilesRemoved,
		result.EntitiesAdded, result.EntitiesModified, result.EntitiesRemoved,
		result.EdgesAdded, result.EdgesRemoved)
}
