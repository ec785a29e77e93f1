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

// Package grammar maps file extensions to languages and owns the pooled
// tree-sitter parsers for each supported grammar. A file whose extension
// maps to a language with no bundled grammar is skipped by the caller with
// a warning rather than failing the run.
package grammar

import (
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language mirrors ingestion.Language without importing that package,
// keeping the registry dependency-free of the extractor it feeds.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	CSharp     Language = "csharp"
	Swift      Language = "swift"
)

// extensionMap is a superset of the closed language list, carried over
// from the ingestion pipeline's own file-classification map and widened
// with the remaining extensions spec.md's closed set names.
var extensionMap = map[string]Language{
	".go":    Go,
	".py":    Python,
	".js":    JavaScript,
	".jsx":   JavaScript,
	".ts":    TypeScript,
	".tsx":   TypeScript,
	".java":  Java,
	".c":     C,
	".h":     C,
	".cpp":   CPP,
	".cc":    CPP,
	".hpp":   CPP,
	".rb":    Ruby,
	".php":   PHP,
	".cs":    CSharp,
	".swift": Swift,
}

// DetectLanguage returns the language tag for a file path's extension and
// whether the extension is recognized at all. An unrecognized extension is
// not an error — the caller skips the file silently, the same as any file
// that isn't source code.
func DetectLanguage(path string) (Language, bool) {
	ext := extOf(path)
	lang, ok := extensionMap[ext]
	return lang, ok
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

// grammarFactory builds a fresh *sitter.Parser pre-configured for one
// language. Registered only for languages with a bundled tree-sitter
// grammar; the remaining closed-set languages are registered in
// extensionMap for classification but have no factory, so Registry.Parser
// reports them as unavailable.
var grammarFactories = map[Language]func() *sitter.Parser{
	Go: func() *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(golang.GetLanguage())
		return p
	},
	Python: func() *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(python.GetLanguage())
		return p
	},
	JavaScript: func() *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(javascript.GetLanguage())
		return p
	},
	TypeScript: func() *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(typescript.GetLanguage())
		return p
	},
}

// Registry owns one sync.Pool of parsers per grammar-backed language.
// Parsers are not safe for concurrent use, so each extraction worker must
// check one out and return it when done.
type Registry struct {
	mu    sync.Mutex
	pools map[Language]*sync.Pool
}

// NewRegistry constructs a Registry and validates every bundled grammar by
// constructing one parser from each factory immediately. A grammar that
// fails to construct panics, which aborts startup; the returned error is
// always nil. The registry holds no query pattern sets: entity matching
// lives inside each extractor.
func NewRegistry() (*Registry, error) {
	r := &Registry{pools: make(map[Language]*sync.Pool, len(grammarFactories))}
	for lang, factory := range grammarFactories {
		func(lang Language, factory func() *sitter.Parser) {
			defer func() {
				if rec := recover(); rec != nil {
					panic(fmt.Sprintf("grammar registry: language %s failed to load: %v", lang, rec))
				}
			}()
			if p := factory(); p == nil {
				panic(fmt.Sprintf("grammar registry: language %s produced a nil parser", lang))
			}
		}(lang, factory)
		r.pools[lang] = &sync.Pool{New: func() any { return factory() }}
	}
	return r, nil
}

// Supported reports whether lang has a bundled grammar available.
func (r *Registry) Supported(lang Language) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pools[lang]
	return ok
}

// Checkout returns a parser for lang and a release func to return it to the
// pool, or false if the language has no bundled grammar.
func (r *Registry) Checkout(lang Language) (*sitter.Parser, func(), bool) {
	r.mu.Lock()
	pool, ok := r.pools[lang]
	r.mu.Unlock()
	if !ok {
		return nil, func() {}, false
	}
	p := pool.Get().(*sitter.Parser)
	return p, func() { pool.Put(p) }, true
}
