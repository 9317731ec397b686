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

package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nozomi-build/forge"
)

// manifestFile is the declarative file a package directory carries,
// generalizing ninja's ManifestParser (manifest_parser.go,
// manifest_parser_concurrent.go) from a single ".ninja" file listing build
// edges to a directory-scoped file listing target definitions.
const manifestFile = "PACKAGE.yaml"

// TargetSpec is one target declaration as written in a package's manifest.
type TargetSpec struct {
	Name    string   `yaml:"name"`
	Deps    []string `yaml:"deps"`
	Srcs    []string `yaml:"srcs"`
	Command string   `yaml:"command"`
}

// PackageLookupValue reports whether name resolves to a package directory
// under the current PackageLocator root.
type PackageLookupValue struct {
	Name  string
	Dir   string
	Found bool
}

func (v PackageLookupValue) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%v", v.Name, v.Dir, v.Found)
}

// PackageLookupKey returns the Key for resolving package name to a directory.
func PackageLookupKey(family forge.Family, name string) forge.Key {
	return forge.NewKey(family, name)
}

// PackageLookupEvalFunc resolves a package name to a directory by joining
// it under the PackageLocator build variable and stat-ing the manifest file
// there directly. Its only dependencies are the DeletedPackages and
// PackageLocator build variables: it requests no FileState or
// DirectoryListing key, so a filesystem change alone does not re-run it.
// A name present in the DeletedPackages build
// variable fails immediately, without touching the filesystem, mirroring
// how a package can be declared gone out-of-band from its on-disk state.
func PackageLookupEvalFunc(ctx context.Context, k forge.Key, env forge.Env) forge.Result {
	name := k.ID
	delVal, status := env.Get(ctx, BuildVariableKey(DeletedPackages))
	if status == forge.GetError {
		return forge.Fail(fmt.Errorf("package lookup %s: deleted_packages unavailable", name))
	}
	if status == forge.GetPending {
		return forge.Missing()
	}
	if deleted, _ := delVal.Data.(map[string]struct{}); deleted != nil {
		if _, ok := deleted[name]; ok {
			return forge.Fail(fmt.Errorf("package lookup %s: no such package (deleted)", name))
		}
	}

	locVal, status := env.Get(ctx, BuildVariableKey(PackageLocator))
	if status == forge.GetError {
		return forge.Fail(fmt.Errorf("package lookup %s: package_locator unavailable", name))
	}
	if status == forge.GetPending {
		return forge.Missing()
	}
	root, _ := locVal.Data.(string)
	if root == "" {
		return forge.Fail(fmt.Errorf("package lookup %s: package_locator not set", name))
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
		if os.IsNotExist(err) {
			return forge.Done(forge.Value{Family: k.Family, Data: PackageLookupValue{Name: name}})
		}
		return forge.Fail(fmt.Errorf("package lookup %s: %w", name, err))
	}
	return forge.Done(forge.Value{Family: k.Family, Data: PackageLookupValue{Name: name, Dir: dir, Found: true}})
}

// PackageValue is a parsed package manifest.
type PackageValue struct {
	Dir     string
	Targets map[string]TargetSpec
}

func (v PackageValue) Fingerprint() string {
	names := make([]string, 0, len(v.Targets))
	for n := range v.Targets {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(v.Dir)
	for _, n := range names {
		t := v.Targets[n]
		fmt.Fprintf(&b, "|%s:%v:%v:%s", n, t.Deps, t.Srcs, t.Command)
	}
	return b.String()
}

// PackageKey returns the Key for a resolved package directory's parsed
// contents.
func PackageKey(family forge.Family, dir string) forge.Key {
	return forge.NewKey(family, dir)
}

// PackageEvalFunc parses dir's manifest file into a set of named targets.
func PackageEvalFunc(_ context.Context, k forge.Key, _ forge.Env) forge.Result {
	dir := k.ID
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return forge.Fail(fmt.Errorf("read package %s: %w", dir, err))
	}
	var doc struct {
		Targets []TargetSpec `yaml:"targets"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return forge.Fail(fmt.Errorf("parse package %s: %w", dir, err))
	}
	targets := make(map[string]TargetSpec, len(doc.Targets))
	for _, t := range doc.Targets {
		targets[t.Name] = t
	}
	return forge.Done(forge.Value{Family: k.Family, Data: PackageValue{Dir: dir, Targets: targets}})
}
