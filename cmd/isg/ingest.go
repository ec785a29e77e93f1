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

	"github.com/corvid-labs/isg/internal/ui"
)

func runIngest(args []string, root string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: isg ingest [options]\n\nParses every eligible file under the workspace root and writes\nthe extracted entities and edges to the graph store.\n\nOptions:\n")
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

	progressCfg := NewProgressConfig(globals)
	spinner := NewSpinner(progressCfg, "Ingesting repository")
	if spinner != nil {
		_ = spinner.RenderBlank()
	}

	result, err := ws.driver.Run(context.Background(), root, ws.cfg.IgnoreGlobs, ws.cfg.MaxFileSizeBytes)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: ingest repository: %v\n", err)
		os.Exit(1)
	}

	if globals.JSON {
		printJSON(map[string]any{
			"files_loaded":      result.FilesLoaded,
			"files_skipped":     result.FilesSkipped,
			"entities_added":    result.EntitiesAdded,
			"entities_modified": result.EntitiesModified,
			"entities_removed":  result.EntitiesRemoved,
			"edges_added":       result.EdgesAdded,
			"edges_removed":     result.EdgesRemoved,
			"edges_unresolved":  result.EdgesUnresolved,
			"batches_sent":      result.BatchesSent,
			"duration_ms":       result.Duration.Milliseconds(),
		})
		return
	}

	ui.Successf("Ingested %s", root)
	fmt.Printf("  files:     %d loaded, %d skipped\n", result.FilesLoaded, result.FilesSkipped)
	fmt.Printf("  entities:  %d added, %d modified, %d removed\n", result.EntitiesAdded, result.EntitiesModified, result.EntitiesRemoved)
	fmt.Printf("  edges:     %d added, %d removed, %d unresolved\n", result.EdgesAdded, result.EdgesRemoved, result.EdgesUnresolved)
	fmt.Printf("  batches:   %d\n", result.BatchesSent)
	fmt.Printf("  duration:  %s\n", result.Duration.Round(1e6))
}
