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

package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/corvid-labs/isg/pkg/grammar"
)

// FileInfo describes a single file discovered by the repo loader, the unit
// the extractor and the incremental re-indexer both operate on.
type FileInfo struct {
	Path     string // workspace-relative
	FullPath string // absolute, for reading
	Size     int64
	Language Language
}

// ExtractResult is everything the Entity Extractor produces for one file:
// its raw entities and edges, plus bookkeeping the Identity Assigner and
// Diff Engine need.
type ExtractResult struct {
	FilePath    string
	ContentHash string
	Entities    []CodeEntity
	Edges       []DependencyEdge
	Skipped     bool // true when the language has no bundled grammar
	SyntaxErrors int
}

// Extractor turns a tree-sitter-parseable file into raw CodeEntity and
// DependencyEdge records. Name resolution for edges is syntactic only:
// an edge whose target cannot be matched within the same file resolves to
// UnknownKey.
type Extractor struct {
	registry        *grammar.Registry
	logger          *slog.Logger
	maxCodeTextSize int64
	truncatedCount  int
	extraTestDirs   []string
}

// NewExtractor builds an Extractor backed by registry.
func NewExtractor(registry *grammar.Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{registry: registry, logger: logger, maxCodeTextSize: 100 << 10}
}

// SetMaxCodeTextSize bounds how much body text an entity carries.
func (e *Extractor) SetMaxCodeTextSize(n int64) { e.maxCodeTextSize = n }

// SetExtraTestDirs appends workspace-configured directory names (config.Workspace.ClassifyTestDirs)
// to Classify's built-in test-directory set.
func (e *Extractor) SetExtraTestDirs(dirs []string) { e.extraTestDirs = dirs }

// ExtractFile reads, parses, and extracts entities/edges from one file.
// A missing grammar is reported via Skipped, not error: spec.md requires
// the caller to log a warning and continue, never fail the run.
func (e *Extractor) ExtractFile(ctx context.Context, fi FileInfo) (*ExtractResult, error) {
	content, err := os.ReadFile(fi.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fi.Path, err)
	}
	sum := sha256.Sum256(content)
	contentHash := hex.EncodeToString(sum[:])

	grammarLang := grammar.Language(fi.Language)
	parser, release, ok := e.registry.Checkout(grammarLang)
	if !ok {
		e.logger.Warn("extractor.skip_unsupported_language", "path", fi.Path, "language", fi.Language)
		return &ExtractResult{FilePath: fi.Path, ContentHash: contentHash, Skipped: true}, nil
	}
	defer release()

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fi.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	syntaxErrors := 0
	if root.HasError() {
		syntaxErrors = countErrorNodes(root)
		if syntaxErrors > 0 {
			e.logger.Warn("extractor.syntax_errors", "path", fi.Path, "count", syntaxErrors)
		}
	}

	var entities []CodeEntity
	var edges []DependencyEdge
	switch fi.Language {
	case LangGo:
		entities, edges = e.extractGo(root, content, fi.Path)
	case LangPython:
		entities, edges = e.extractPython(root, content, fi.Path)
	case LangJavaScript:
		entities, edges = e.extractJSFamily(root, content, fi.Path, LangJavaScript)
	case LangTypeScript:
		entities, edges = e.extractJSFamily(root, content, fi.Path, LangTypeScript)
	}

	isTest := Classify(fi.Path, e.extraTestDirs...)
	for i := range entities {
		entities[i].IsTest = isTest
		if e.maxCodeTextSize > 0 && int64(len(entities[i].BodyText)) > e.maxCodeTextSize {
			entities[i].BodyText = entities[i].BodyText[:e.maxCodeTextSize]
			e.truncatedCount++
		}
		entities[i].BodyHash = hashBody(entities[i].BodyText)
	}

	return &ExtractResult{
		FilePath:     fi.Path,
		ContentHash:  contentHash,
		Entities:     entities,
		Edges:        edges,
		SyntaxErrors: syntaxErrors,
	}, nil
}

// GetTruncatedCount returns how many entity bodies were truncated so far.
func (e *Extractor) GetTruncatedCount() int { return e.truncatedCount }

// countErrorNodes counts tree-sitter ERROR nodes in a parse tree. Parsing
// is error-tolerant; this is only used for logging, never to abort.
func countErrorNodes(node *sitter.Node) int {
	count := 0
	if node.Type() == "ERROR" {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrorNodes(node.Child(i))
	}
	return count
}

// nodeText slices source text for a node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
