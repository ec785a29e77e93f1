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

func runStatus(args []string, root string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: isg status [options]\n\nReports entity and edge counts for the workspace's graph store.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ws, err := openWorkspace(root, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ws.Close()

	ctx := context.Background()
	entityCount, err := countRows(ctx, ws, "?[count(key)] := *isg_entity{key}")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: count entities: %v\n", err)
		os.Exit(1)
	}
	edgeCount, err := countRows(ctx, ws, "?[count(from_key)] := *isg_edge{from_key}")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: count edges: %v\n", err)
		os.Exit(1)
	}
	fileCount, err := countRows(ctx, ws, "?[count(file_path)] := *isg_file_hash{file_path}")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: count files: %v\n", err)
		os.Exit(1)
	}

	if globals.JSON {
		printJSON(map[string]any{
			"root":     root,
			"data_dir": ws.cfg.DataDir,
			"engine":   ws.cfg.Engine,
			"entities": entityCount,
			"edges":    edgeCount,
			"files":    fileCount,
		})
		return
	}

	ui.Header("Workspace status")
	fmt.Printf("  root:     %s\n", root)
	fmt.Printf("  data dir: %s\n", ws.cfg.DataDir)
	fmt.Printf("  engine:   %s\n", ws.cfg.Engine)
	fmt.Printf("  entities: %d\n", entityCount)
	fmt.Printf("  edges:    %d\n", edgeCount)
	fmt.Printf("  files:    %d\n", fileCount)
}

// countRows runs a single-column count(...) Datalog query and returns the
// scalar result, or 0 if the relation is empty.
func countRows(ctx context.Context, ws *openedWorkspace, script string) (int, error) {
	res, err := ws.backend.Query(ctx, script)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	switch v := res.Rows[0][0].(type) {
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, nil
	}
}
