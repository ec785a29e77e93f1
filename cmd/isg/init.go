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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/corvid-labs/isg/internal/bootstrap"
	"github.com/corvid-labs/isg/internal/config"
	"github.com/corvid-labs/isg/internal/ui"
)

func runInit(args []string, root string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	engine := fs.String("engine", "rocksdb", "CozoDB storage engine: rocksdb, sqlite, or mem")
	debounceMillis := fs.Int("debounce-ms", 500, "File watcher debounce window in milliseconds")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: isg init [options]\n\nCreates .isg/workspace.yaml and the local graph store.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := config.Default(root)
	cfg.Engine = *engine
	cfg.DebounceMillis = *debounceMillis

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: save workspace config: %v\n", err)
		os.Exit(1)
	}

	projectID := filepath.Base(root)
	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
		ProjectID: projectID,
		DataDir:   cfg.DataDir,
		Engine:    cfg.Engine,
	}, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: initialize workspace: %v\n", err)
		os.Exit(1)
	}

	if globals.JSON {
		printJSON(map[string]any{
			"project_id": info.ProjectID,
			"data_dir":   info.DataDir,
			"engine":     info.Engine,
			"root":       root,
		})
		return
	}

	ui.Successf("Initialized workspace %q", projectID)
	fmt.Printf("  data dir: %s\n", info.DataDir)
	fmt.Printf("  engine:   %s\n", info.Engine)
	fmt.Printf("  config:   %s\n", filepath.Join(root, ".isg", "workspace.yaml"))
}
