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

package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// EntityType is a closed enumeration of the kinds of code entity the
// extractor recognizes. Unlike the per-language struct split the original
// function/type parsers used, the graph store treats every kind uniformly
// as a CodeEntity row distinguished by this tag.
type EntityType string

const (
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityType_     EntityType = "type" // struct/class/interface/enum declaration
	EntityVariable  EntityType = "variable"
	EntityConstant  EntityType = "constant"
	EntityModule    EntityType = "module" // file-level scope
	EntityParameter EntityType = "parameter"
)

// Valid reports whether t is one of the recognized entity kinds.
func (t EntityType) Valid() bool {
	switch t {
	case EntityFunction, EntityMethod, EntityType_, EntityVariable, EntityConstant, EntityModule, EntityParameter:
		return true
	}
	return false
}

// Language is a closed enumeration matching the Grammar Registry's
// supported language tags.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangCSharp     Language = "csharp"
	LangSwift      Language = "swift"
	LangRust       Language = "rust"
	LangUnknown    Language = "unknown"
)

// EdgeType is a closed enumeration of the dependency relationships the
// extractor can derive syntactically. No edge type implies semantic type
// resolution; all are pattern matches over the AST.
type EdgeType string

const (
	EdgeCalls      EdgeType = "calls"
	EdgeUses       EdgeType = "uses"
	EdgeImplements EdgeType = "implements"
	EdgeExtends    EdgeType = "extends"
	EdgeContains   EdgeType = "contains"
	EdgeImports    EdgeType = "imports"
)

// UnknownKey is the external sentinel used when an edge's endpoint cannot be
// resolved to a concrete entity within the current translation unit.
const UnknownKey = "unknown:0-0"

// CodeEntity is a single node in the interface signature graph: one
// function, method, type, variable, constant, or module-scope declaration
// extracted from a source file.
//
// Key is unstable across re-indexing (it bakes in the current line range);
// SemanticPath is the stable identity used to track an entity's lifetime
// across edits. See BuildKey and BuildSemanticPath.
type CodeEntity struct {
	Key          string     // <lang>:<kind>:<name>:<path_digest>:<line_start>-<line_end>
	SemanticPath string     // stable path independent of line numbers
	Kind         EntityType
	Language     Language
	Name         string
	FilePath     string
	LineStart    int
	LineEnd      int
	SignatureText string
	BodyText     string
	BodyHash     string // sha256 of BodyText, used for the diff engine's hash-match step
	ParentScope  string // enclosing semantic_path, empty at file scope
	IsTest       bool   // classification heuristic result, see Classify
	BirthTimestamp int64 // monotonic counter value assigned at first observation
	Removed      bool   // tombstoned by the Diff Engine when no longer observed
	IsNew        bool   // set by IdentityAssigner.Assign: true iff BirthTimestamp was freshly minted, not reused
	PriorKey     string // the matched prior entity's Key; empty when IsNew or Removed, see IdentityAssigner.Assign
}

// DependencyEdge is a directed relationship between two entities (or an
// entity and the unknown sentinel when the target cannot be resolved).
type DependencyEdge struct {
	FromKey string
	ToKey   string
	Type    EdgeType
}

// FileHashEntry records the last-observed content hash for a file, letting
// the Incremental Re-Indexer's HashChecking phase short-circuit unmodified
// files without re-parsing them.
type FileHashEntry struct {
	FilePath string
	Hash     string
}

// pathReplacer turns path separators and extension dots into underscores so
// a file path embeds legibly inside a colon-delimited key.
var pathReplacer = strings.NewReplacer("/", "_", ".", "_")

// pathDigest is the literal text transform entity key grammar uses for
// <path_digest>: the path with "/" and "." replaced by "_", plus a leading
// "_" marking the path as rooted. "src/lib.rs" becomes "_src_lib_rs"; an
// already-rooted path like "/src/lib.rs" becomes "__src_lib_rs", matching
// the worked example's double leading underscore.
func pathDigest(path string) string {
	return "_" + pathReplacer.Replace(path)
}

// BuildKey constructs the bit-exact external entity key:
// <lang>:<kind>:<name>:<path_digest>:<line_start>-<line_end>.
func BuildKey(lang Language, kind EntityType, name, filePath string, lineStart, lineEnd int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d-%d", lang, kind, name, pathDigest(filePath), lineStart, lineEnd)
}

// BuildSemanticPath constructs the stable path used for identity tracking:
// <file_path>#<parent_scope/>name, independent of line numbers so the same
// declaration keeps its identity as surrounding code shifts.
func BuildSemanticPath(filePath, parentScope, name string) string {
	if parentScope == "" {
		return fmt.Sprintf("%s#%s", filePath, name)
	}
	return fmt.Sprintf("%s#%s/%s", filePath, parentScope, name)
}

// hashBody returns the sha256 hex digest of body text, used by the Identity
// Assigner and Diff Engine's hash-match step.
func hashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
