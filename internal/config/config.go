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

// Package config loads and validates the on-disk workspace configuration
// for an ISG workspace (.isg/workspace.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	isgerrors "github.com/corvid-labs/isg/internal/errors"
)

// defaultIgnoreGlobs mirrors the exclude list the ingestion pipeline has
// always shipped with, generalized from language-specific vendor dirs to
// the full closed language set this workspace indexes.
var defaultIgnoreGlobs = []string{
	".git/**",
	"node_modules/**", "vendor/**", "target/**",
	"dist/**", "build/**", "bin/**", "**/bin/**", "out/**",
	".idea/**", ".vscode/**", "*.swp", "*.swo",
	".next/**", ".nuxt/**",
	".isg/**",
	"*.o", "*.so", "*.dylib", "*.exe", "*.dll", "*.a",
	".cache/**", "coverage/**", "tmp/**", ".tmp/**",
	"*.min.js", "*.min.css",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
}

// Workspace is the full configuration of a single indexed workspace,
// persisted as .isg/workspace.yaml at the workspace root.
type Workspace struct {
	// Root is the absolute path to the workspace root. Not persisted to
	// YAML (derived from the config file's own location); set by Load.
	Root string `yaml:"-"`

	// IgnoreGlobs are glob patterns for paths excluded from ingestion.
	IgnoreGlobs []string `yaml:"ignore_globs"`

	// DebounceMillis is the File Watcher's coalescing window in milliseconds.
	DebounceMillis int `yaml:"debounce_millis"`

	// WatchEnabled is the File Watcher on/off setting. It is persisted but
	// not consulted by any command: `isg watch`
	// starts the watcher regardless of its value.
	WatchEnabled bool `yaml:"watch_enabled"`

	// ClassifyTestDirs overrides the default test-directory name list used
	// by Classify, appended to (never replacing) the built-in set.
	ClassifyTestDirs []string `yaml:"classify_test_dirs"`

	// DataDir is where the Graph Store keeps its CozoDB files. Defaults to
	// <root>/.isg/data.
	DataDir string `yaml:"data_dir"`

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	Engine string `yaml:"engine"`

	// MaxFileSizeBytes skips files larger than this during ingestion.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// MaxCodeTextBytes truncates a single entity's body text beyond this size.
	MaxCodeTextBytes int64 `yaml:"max_code_text_bytes"`

	// BatchTargetMutations is the target mutation count per store write batch.
	BatchTargetMutations int `yaml:"batch_target_mutations"`

	// ParseWorkers bounds the Ingestion Driver's parse worker pool.
	ParseWorkers int `yaml:"parse_workers"`
}

// Debounce returns DebounceMillis as a time.Duration.
func (w Workspace) Debounce() time.Duration {
	return time.Duration(w.DebounceMillis) * time.Millisecond
}

// Default returns a Workspace populated with the same defaults the
// ingestion pipeline has always shipped, rooted at root.
func Default(root string) Workspace {
	return Workspace{
		Root:                 root,
		IgnoreGlobs:          append([]string(nil), defaultIgnoreGlobs...),
		DebounceMillis:       500,
		WatchEnabled:         true,
		DataDir:              filepath.Join(root, ".isg", "data"),
		Engine:               "rocksdb",
		MaxFileSizeBytes:     1 << 20,  // 1MB
		MaxCodeTextBytes:     100 << 10, // 100KB
		BatchTargetMutations: 1000,
		ParseWorkers:         4,
	}
}

// configPath returns the canonical config file path for a workspace root.
func configPath(root string) string {
	return filepath.Join(root, ".isg", "workspace.yaml")
}

// Load reads .isg/workspace.yaml under root, filling unset fields from
// Default. A missing config file is not an error: it returns Default(root).
func Load(root string) (Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, isgerrors.NewConfigError(
			"Cannot resolve workspace root",
			err.Error(),
			"Pass an existing directory as the workspace root",
			err,
		)
	}

	cfg := Default(abs)
	data, err := os.ReadFile(configPath(abs))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Workspace{}, isgerrors.NewConfigError(
			"Cannot read workspace configuration",
			err.Error(),
			"Check file permissions on .isg/workspace.yaml",
			err,
		)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Workspace{}, isgerrors.NewConfigError(
			"Cannot parse workspace configuration",
			err.Error(),
			"Fix the YAML syntax in .isg/workspace.yaml",
			err,
		)
	}
	cfg.Root = abs
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(abs, ".isg", "data")
	}
	return cfg, nil
}

// Save writes the workspace configuration to .isg/workspace.yaml, creating
// the .isg directory if needed.
func Save(cfg Workspace) error {
	dir := filepath.Join(cfg.Root, ".isg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return isgerrors.NewPermissionError(
			"Cannot create .isg directory",
			err.Error(),
			fmt.Sprintf("Check write permissions on %s", cfg.Root),
			err,
		)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return isgerrors.NewInternalError("Cannot serialize workspace configuration", err.Error(), "This is a bug", err)
	}
	tmp := configPath(cfg.Root) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return isgerrors.NewPermissionError("Cannot write workspace configuration", err.Error(), "Check write permissions", err)
	}
	return os.Rename(tmp, configPath(cfg.Root))
}
