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

import "testing"

func TestClassify_BuiltInSuffixes(t *testing.T) {
	cases := map[string]bool{
		"pkg/foo_test.go":       true,
		"pkg/foo.go":            false,
		"lib/test_handlers.py":  true,
		"lib/handlers.py":       false,
		"src/widget.test.ts":    true,
		"src/widget.spec.js":    true,
		"src/widget.ts":         false,
		"src/tests/helper.go":   true,
		"src/__tests__/unit.js": true,
	}
	for path, want := range cases {
		if got := Classify(path); got != want {
			t.Errorf("Classify(%q) = %v, want %v", path, got, want)
		}
	}
}

// TestClassify_ExtraTestDirs covers the override path review comment 4
// required: workspace-configured directories (config.Workspace.ClassifyTestDirs)
// must extend, not replace, the built-in set.
func TestClassify_ExtraTestDirs(t *testing.T) {
	if Classify("src/fixtures/helper.go") {
		t.Fatalf("fixtures/ should not be classified as test without an override")
	}
	if !Classify("src/fixtures/helper.go", "/fixtures/") {
		t.Errorf("extraTestDirs override should flag fixtures/ as test surface")
	}
	// Built-in set must still apply even when overrides are present.
	if !Classify("src/tests/helper.go", "/fixtures/") {
		t.Errorf("built-in test dirs must still match alongside overrides")
	}
	// Empty override entries (unset config) must be ignored, not panic.
	if Classify("src/other.go", "", "") {
		t.Errorf("blank override entries must not match everything")
	}
}
