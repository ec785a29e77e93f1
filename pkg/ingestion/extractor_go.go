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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// goWalkContext accumulates entities and the simple-name -> key index used
// to resolve same-file calls, the same two-pass shape the original Go
// parser used (collect declarations, then walk each body for calls).
type goWalkContext struct {
	content      []byte
	filePath     string
	entities     []CodeEntity
	nodesByKey   map[string]*sitter.Node
	funcNameToKey map[string]string
	anonCounter  int
}

// extractGo walks a Go AST and returns the CodeEntity/DependencyEdge pairs
// for function/method declarations, type declarations, and same-file calls.
func (e *Extractor) extractGo(root *sitter.Node, content []byte, filePath string) ([]CodeEntity, []DependencyEdge) {
	ctx := &goWalkContext{
		content:       content,
		filePath:      filePath,
		nodesByKey:    make(map[string]*sitter.Node),
		funcNameToKey: make(map[string]string),
	}
	e.walkGo(root, ctx)
	types := e.extractGoTypes(root, content, filePath)
	ctx.entities = append(ctx.entities, types...)

	var edges []DependencyEdge
	for key, node := range ctx.nodesByKey {
		edges = append(edges, e.extractGoCalls(node, ctx, key)...)
	}
	return ctx.entities, edges
}

func (e *Extractor) walkGo(node *sitter.Node, ctx *goWalkContext) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration":
		ent := e.extractGoFunc(node, ctx, false)
		if ent != nil {
			ctx.entities = append(ctx.entities, *ent)
			ctx.nodesByKey[ent.Key] = node
			ctx.funcNameToKey[ent.Name] = ent.Key
		}
	case "method_declaration":
		ent := e.extractGoFunc(node, ctx, true)
		if ent != nil {
			ctx.entities = append(ctx.entities, *ent)
			ctx.nodesByKey[ent.Key] = node
			simple := ent.Name
			if idx := strings.LastIndexByte(simple, '.'); idx >= 0 {
				simple = simple[idx+1:]
			}
			ctx.funcNameToKey[simple] = ent.Key
		}
	case "func_literal":
		ctx.anonCounter++
		ent := e.extractGoFunc(node, ctx, false)
		if ent != nil {
			ctx.entities = append(ctx.entities, *ent)
			ctx.nodesByKey[ent.Key] = node
			// anonymous functions are not referenced by name
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		e.walkGo(node.Child(i), ctx)
	}
}

// extractGoFunc handles function_declaration, method_declaration, and
// func_literal nodes uniformly, building the "func Name[T](...) result"
// style signature text the original parser produced.
func (e *Extractor) extractGoFunc(node *sitter.Node, ctx *goWalkContext, isMethod bool) *CodeEntity {
	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, ctx.content)
	} else if node.Type() == "func_literal" {
		name = "func_literal"
	} else {
		return nil
	}

	receiverType := ""
	if isMethod {
		if recv := node.ChildByFieldName("receiver"); recv != nil {
			receiverType = extractGoReceiverType(recv, ctx.content)
		}
		if receiverType != "" {
			name = receiverType + "." + name
		}
	}

	var sig strings.Builder
	sig.WriteString("func ")
	sig.WriteString(name)
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sig.WriteString(nodeText(tp, ctx.content))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig.WriteString(nodeText(params, ctx.content))
	}
	if result := node.ChildByFieldName("result"); result != nil {
		sig.WriteString(" ")
		sig.WriteString(nodeText(result, ctx.content))
	}

	lineStart := int(node.StartPoint().Row) + 1
	lineEnd := int(node.EndPoint().Row) + 1
	kind := EntityFunction
	if isMethod {
		kind = EntityMethod
	}

	return &CodeEntity{
		Key:           BuildKey(LangGo, kind, name, ctx.filePath, lineStart, lineEnd),
		SemanticPath:  BuildSemanticPath(ctx.filePath, "", name),
		Kind:          kind,
		Language:      LangGo,
		Name:          name,
		FilePath:      ctx.filePath,
		LineStart:     lineStart,
		LineEnd:       lineEnd,
		SignatureText: sig.String(),
		BodyText:      nodeText(node, ctx.content),
	}
}

// extractGoReceiverType pulls the bare type name out of a Go method
// receiver, e.g. "(s *Server)" -> "Server".
func extractGoReceiverType(receiver *sitter.Node, content []byte) string {
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child.Type() == "parameter_declaration" {
			typeNode := child.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			text := nodeText(typeNode, content)
			return strings.TrimPrefix(text, "*")
		}
	}
	return ""
}

// extractGoTypes collects struct/interface/type-alias declarations as
// module-scope CodeEntity records.
func (e *Extractor) extractGoTypes(root *sitter.Node, content []byte, filePath string) []CodeEntity {
	var out []CodeEntity
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == "type_spec" {
			nameNode := node.ChildByFieldName("name")
			if nameNode != nil {
				name := nodeText(nameNode, content)
				lineStart := int(node.StartPoint().Row) + 1
				lineEnd := int(node.EndPoint().Row) + 1
				out = append(out, CodeEntity{
					Key:           BuildKey(LangGo, EntityType_, name, filePath, lineStart, lineEnd),
					SemanticPath:  BuildSemanticPath(filePath, "", name),
					Kind:          EntityType_,
					Language:      LangGo,
					Name:          name,
					FilePath:      filePath,
					LineStart:     lineStart,
					LineEnd:       lineEnd,
					SignatureText: "type " + name,
					BodyText:      nodeText(node, content),
				})
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
	return out
}

// extractGoCalls walks a function body for call_expression nodes and
// resolves each to a same-file key via funcNameToKey, falling back to the
// unknown sentinel per spec.md §4.2's syntactic-resolution rule.
func (e *Extractor) extractGoCalls(node *sitter.Node, ctx *goWalkContext, fromKey string) []DependencyEdge {
	var edges []DependencyEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				calleeName := calleeSimpleName(fn, ctx.content)
				toKey := UnknownKey
				if k, ok := ctx.funcNameToKey[calleeName]; ok {
					toKey = k
				}
				edges = append(edges, DependencyEdge{FromKey: fromKey, ToKey: toKey, Type: EdgeCalls})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return edges
}

// calleeSimpleName extracts the rightmost identifier of a call target,
// e.g. "pkg.Foo" -> "Foo", "s.Method" -> "Method", "Foo" -> "Foo".
func calleeSimpleName(fn *sitter.Node, content []byte) string {
	text := nodeText(fn, content)
	if idx := strings.LastIndexByte(text, '.'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}
