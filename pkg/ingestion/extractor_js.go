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

// extractJSFamily handles both JavaScript and TypeScript: the node type
// names tree-sitter-typescript uses for classes, methods, and functions
// are a superset of tree-sitter-javascript's, so one walk serves both.
func (e *Extractor) extractJSFamily(root *sitter.Node, content []byte, filePath string, lang Language) ([]CodeEntity, []DependencyEdge) {
	nameToKey := make(map[string]string)
	nodesByKey := make(map[string]*sitter.Node)
	var entities []CodeEntity

	var walk func(node *sitter.Node, scope string)
	walk = func(node *sitter.Node, scope string) {
		if node == nil {
			return
		}
		switch node.Type() {
		case "class_declaration":
			nameNode := node.ChildByFieldName("name")
			className := ""
			if nameNode != nil {
				className = nodeText(nameNode, content)
				lineStart := int(node.StartPoint().Row) + 1
				lineEnd := int(node.EndPoint().Row) + 1
				entities = append(entities, CodeEntity{
					Key:           BuildKey(lang, EntityType_, className, filePath, lineStart, lineEnd),
					SemanticPath:  BuildSemanticPath(filePath, scope, className),
					Kind:          EntityType_,
					Language:      lang,
					Name:          className,
					FilePath:      filePath,
					LineStart:     lineStart,
					LineEnd:       lineEnd,
					SignatureText: "class " + className,
					BodyText:      nodeText(node, content),
				})
			}
			if body := node.ChildByFieldName("body"); body != nil {
				for i := 0; i < int(body.ChildCount()); i++ {
					walk(body.Child(i), className)
				}
			}
			return
		case "method_definition":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			methodName := nodeText(nameNode, content)
			fullName := methodName
			kind := EntityFunction
			if scope != "" {
				fullName = scope + "." + methodName
				kind = EntityMethod
			}
			lineStart := int(node.StartPoint().Row) + 1
			lineEnd := int(node.EndPoint().Row) + 1
			ent := CodeEntity{
				Key:           BuildKey(lang, kind, fullName, filePath, lineStart, lineEnd),
				SemanticPath:  BuildSemanticPath(filePath, scope, methodName),
				Kind:          kind,
				Language:      lang,
				Name:          fullName,
				FilePath:      filePath,
				LineStart:     lineStart,
				LineEnd:       lineEnd,
				SignatureText: methodName + paramText(node, content),
				BodyText:      nodeText(node, content),
			}
			entities = append(entities, ent)
			nodesByKey[ent.Key] = node
			nameToKey[methodName] = ent.Key
		case "function_declaration":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			funcName := nodeText(nameNode, content)
			lineStart := int(node.StartPoint().Row) + 1
			lineEnd := int(node.EndPoint().Row) + 1
			ent := CodeEntity{
				Key:           BuildKey(lang, EntityFunction, funcName, filePath, lineStart, lineEnd),
				SemanticPath:  BuildSemanticPath(filePath, scope, funcName),
				Kind:          EntityFunction,
				Language:      lang,
				Name:          funcName,
				FilePath:      filePath,
				LineStart:     lineStart,
				LineEnd:       lineEnd,
				SignatureText: "function " + funcName + paramText(node, content),
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
		edges = append(edges, jsCalls(node, content, key, nameToKey)...)
	}
	return entities, edges
}

func paramText(node *sitter.Node, content []byte) string {
	if p := node.ChildByFieldName("parameters"); p != nil {
		return nodeText(p, content)
	}
	return "()"
}

func jsCalls(node *sitter.Node, content []byte, fromKey string, nameToKey map[string]string) []DependencyEdge {
	var edges []DependencyEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
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
