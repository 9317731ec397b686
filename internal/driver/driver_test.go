// Copyright 2011 Google Inc. All Rights Reserved.
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

package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozomi-build/forge/internal/evaluator"
	"github.com/nozomi-build/forge/internal/keys"
)

func newTestDriver() *Driver {
	return New(Config{Threads: 2, Log: zerolog.Nop()})
}

func writePackage(t *testing.T, root, name, manifest string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PACKAGE.yaml"), []byte(manifest), 0o644))
}

func TestDriverAnalyzeAndExecuteNoDeps(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "widgets", `
targets:
  - name: lib
    command: "exit 0"
`)

	d := newTestDriver()
	d.SetExternalInput(keys.PackageLocator, root)
	d.SetExternalInput(keys.TopLevelArtifactContext, map[string]string{})

	ctx := context.Background()
	results, err := d.Execute(ctx, filepath.Join(root, "widgets"), []string{"lib"}, false)
	require.NoError(t, err)
	res := results["lib"]
	require.Equal(t, evaluator.ResultValue, res.Kind)
}

func TestDriverEvaluateTargetPatternsResolvesPackage(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "widgets", "targets: []")

	d := newTestDriver()
	d.SetExternalInput(keys.PackageLocator, root)

	lookups, err := d.EvaluateTargetPatterns(context.Background(), []string{"widgets", "ghost"})
	require.NoError(t, err)
	assert.True(t, lookups["widgets"].Found)
	assert.False(t, lookups["ghost"].Found)
}

// TestDriverDeletedPackagesFailsThenRestoresOnRevert exercises declaring a
// package deleted out-of-band from its on-disk state, then reverting that
// declaration without the underlying files ever changing.
func TestDriverDeletedPackagesFailsThenRestoresOnRevert(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "widgets", "targets: []")

	d := newTestDriver()
	d.SetExternalInput(keys.PackageLocator, root)

	ctx := context.Background()
	before, err := d.EvaluateTargetPatterns(ctx, []string{"widgets"})
	require.NoError(t, err)
	require.True(t, before["widgets"].Found)

	d.SetDeletedPackages([]string{"widgets"})
	_, err = d.EvaluateTargetPatterns(ctx, []string{"widgets"})
	require.Error(t, err, "lookup of a declared-deleted package must fail")

	d.SetDeletedPackages(nil)
	after, err := d.EvaluateTargetPatterns(ctx, []string{"widgets"})
	require.NoError(t, err)
	assert.True(t, after["widgets"].Found, "reverting the deletion restores the prior value")
}

func TestDriverKeepGoingReportsPartialFailure(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "widgets", `
targets:
  - name: ok
    command: "exit 0"
  - name: bad
    command: "exit 1"
`)

	d := newTestDriver()
	d.SetExternalInput(keys.PackageLocator, root)
	d.SetExternalInput(keys.TopLevelArtifactContext, map[string]string{})

	results, _ := d.Execute(context.Background(), filepath.Join(root, "widgets"), []string{"ok", "bad"}, true)
	assert.Equal(t, evaluator.ResultValue, results["ok"].Kind)
	assert.Equal(t, evaluator.ResultFail, results["bad"].Kind)
}

func TestDriverDropConfiguredTargetsForcesReanalysis(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "widgets", `
targets:
  - name: lib
    command: "exit 0"
`)

	d := newTestDriver()
	d.SetExternalInput(keys.PackageLocator, root)
	d.SetExternalInput(keys.TopLevelArtifactContext, map[string]string{})

	ctx := context.Background()
	pkgDir := filepath.Join(root, "widgets")
	_, err := d.Execute(ctx, pkgDir, []string{"lib"}, false)
	require.NoError(t, err)

	dropped := d.DropConfiguredTargets()
	assert.NotEmpty(t, dropped)

	results, err := d.Execute(ctx, pkgDir, []string{"lib"}, false)
	require.NoError(t, err)
	assert.Equal(t, evaluator.ResultValue, results["lib"].Kind)
}
