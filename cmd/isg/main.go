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

// Package main implements the isg CLI: ingest a repository into the
// interface signature graph, watch it for changes, and query the result.
//
// Usage:
//
//	isg init                       Create .isg/workspace.yaml
//	isg ingest                     Ingest the current repository
//	isg [--json] status            Show workspace status
//	isg [--json] query <script>    Execute a Datalog query
//	isg watch                      Watch for changes and reindex incrementally
//	isg serve [--addr]             Serve the HTTP query API
//	isg reset --yes                Delete local workspace data
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are the flags every subcommand inherits, threaded explicitly
// rather than through package-level state so subcommands stay testable.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output as JSON")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		verbose     = flag.Int("verbose", 0, "Verbosity level (0-2)")
		rootFlag    = flag.String("root", "", "Workspace root (default: current directory)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `isg - Interface Signature Graph CLI

Usage:
  isg <command> [options]

Commands:
  init      Create .isg/workspace.yaml configuration
  ingest    Ingest the current repository into the graph store
  status    Show workspace status
  query     Execute a raw Datalog query
  watch     Watch the workspace and reindex incrementally
  serve     Serve the HTTP query API
  reset     Delete local workspace data (destructive!)

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  isg init
  isg ingest
  isg watch
  isg serve --addr :7420
  isg query --limit 10 "?[name, file_path] := *isg_entity{name, file_path}"
  isg --json status

Data Storage:
  Workspace state lives under .isg/ inside the workspace root.
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("isg version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Quiet: *quiet, NoColor: *noColor, Verbose: *verbose}
	root := *rootFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		root = wd
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "init":
		runInit(cmdArgs, root, globals)
	case "ingest":
		runIngest(cmdArgs, root, globals)
	case "status":
		runStatus(cmdArgs, root, globals)
	case "query":
		runQuery(cmdArgs, root, globals)
	case "watch":
		runWatch(cmdArgs, root, globals)
	case "serve":
		runServe(cmdArgs, root, globals)
	case "reset":
		runReset(cmdArgs, root, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
