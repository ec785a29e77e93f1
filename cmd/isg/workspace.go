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
	"fmt"
	"log/slog"

	"github.com/corvid-labs/isg/internal/config"
	"github.com/corvid-labs/isg/pkg/grammar"
	"github.com/corvid-labs/isg/pkg/ingestion"
	"github.com/corvid-labs/isg/pkg/storage"
)

// openedWorkspace bundles the handles every command past init needs:
// the loaded config, the storage backend, and the driver that sits on
// top of it. Callers must Close the backend when done.
type openedWorkspace struct {
	cfg     config.Workspace
	backend *storage.EmbeddedBackend
	store   *storage.IngestionStore
	driver  *ingestion.Driver
}

func openWorkspace(root string, logger *slog.Logger) (*openedWorkspace, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load workspace config: %w", err)
	}

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir: cfg.DataDir,
		Engine:  cfg.Engine,
	})
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	if err := backend.EnsureSchema(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	registry, err := grammar.NewRegistry()
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load grammar registry: %w", err)
	}

	store := storage.NewIngestionStore(backend)
	loader := ingestion.NewRepoLoader(logger)
	extractor := ingestion.NewExtractor(registry, logger)
	extractor.SetExtraTestDirs(cfg.ClassifyTestDirs)
	if cfg.MaxCodeTextBytes > 0 {
		extractor.SetMaxCodeTextSize(cfg.MaxCodeTextBytes)
	}
	driver := ingestion.NewDriver(loader, extractor, store, cfg.BatchTargetMutations, cfg.ParseWorkers, logger)

	return &openedWorkspace{cfg: cfg, backend: backend, store: store, driver: driver}, nil
}

func (w *openedWorkspace) Close() error {
	return w.backend.Close()
}
