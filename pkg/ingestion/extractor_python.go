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
	sitter "github.com/smacker/go-tree-sitter"
)

// extractPython walks a Python AST for function_definition and
// class_definition nodes, tracking enclosing class scope for method names
// (Class.method) the same way the Go extractor tracks receiver types.
func (e *Extractor) extractPython(root *sitter.Node, content []byte, filePath string) ([]CodeEntity, []DependencyEdge) {
	nameToKey := make(map[string]string)
	nodesByKey := make(map[string]*sitter.Node)
	var entities []CodeEntity

	var walk func(node *sitter.Node, scope string)
	walk = func(node *sitter.Node, scope string) {
		if node == nil {
			return
		}
		switch node.Type() {
		case "class_definition":
			nameNode := node.ChildByFieldName("name")
			className := ""
			if nameNode != nil {
				className = nodeText(nameNode, content)
				lineStart := int(node.StartPoint().Row) + 1
				lineEnd := int(node.EndPoint().Row) + 1
				entities = append(entities, CodeEntity{
					Key:           BuildKey(LangPython, EntityType_, className, filePath, lineStart, lineEnd),
					SemanticPath:  BuildSemanticPath(filePath, scope, className),
					Kind:          EntityType_,
					Language:      LangPython,
					Name:          className,
					FilePath:      filePath,
					LineStart:     lineStart,
					LineEnd:       lineEnd,
					SignatureText: "class " + className,
					BodyText:      nodeText(node, content),
				})
			}
			body := node.ChildByFieldName("body")
			if body != nil {
				for i := 0; i < int(body.ChildCount()); i++ {
					walk(body.Child(i), className)
				}
			}
			return
		case "function_definition":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			funcName := nodeText(nameNode, content)
			fullName := funcName
			kind := EntityFunction
			if scope != "" {
				fullName = scope + "." + funcName
				kind = EntityMethod
			}
			lineStart := int(node.StartPoint().Row) + 1
			lineEnd := int(node.EndPoint().Row) + 1
			sig := "def " + funcName
			if params := node.ChildByFieldName("parameters"); params != nil {
				sig = "def " + funcName + nodeText(params, content)
			}
			ent := CodeEntity{
				Key:           BuildKey(LangPython, kind, fullName, filePath, lineStart, lineEnd),
				SemanticPath:  BuildSemanticPath(filePath, scope, funcName),
				Kind:          kind,
				Language:      LangPython,
				Name:          fullName,
				FilePath:      filePath,
				LineStart:     lineStart,
				LineEnd:       lineEnd,
				SignatureText: sig,
				BodyText:      nodeText(node, content),
			}
			entities = append(entities, ent)
			nodesByKey[ent.Key] = node
			nameToKey[funcName] = ent.Key
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i), scope)
		}
	}
	walk(root, "")

	var edges []DependencyEdge
	for key, node := range nodesByKey {
		edges = append(edges, pythonCalls(node, content, key, nameToKey)...)
	}
	return entities, edges
}

func pythonCalls(node *sitter.Node, content []byte, fromKey string, nameToKey map[string]string) []DependencyEdge {
	var edges []DependencyEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				name := calleeSimpleName(fn, content)
				toKey := UnknownKey
				if k, ok := nameToKey[name]; ok {
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
