// Copyright 2012 Google Inc. All Rights Reserved.
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozomi-build/forge"
)

func testFamilies() Families {
	return Families{
		FileState:               10,
		DirectoryListing:        11,
		PackageLookup:           12,
		Package:                 13,
		ConfiguredTarget:        14,
		ActionExecution:         15,
		ConfigurationCollection: 16,
	}
}

func TestConfiguredTargetEvalFuncNoDeps(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	env.setReady(PackageKey(f.Package, "pkg"), forge.Value{Data: PackageValue{
		Dir:     "pkg",
		Targets: map[string]TargetSpec{"lib": {Name: "lib"}},
	}})
	env.setReady(ConfigurationCollectionKey(f.ConfigurationCollection), forge.Value{Data: ConfigurationCollectionValue{}})

	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "lib")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	require.Equal(t, forge.OutcomeValue, res.Outcome)
	v := res.Value.Data.(ConfiguredTargetValue)
	assert.Equal(t, "pkg", v.PackageDir)
	assert.Equal(t, "lib", v.Name)
	assert.Empty(t, v.DepKeys)
	assert.Equal(t, ActionExecutionKey(f.ActionExecution, "pkg", "lib"), v.ActionKey)
}

func TestConfiguredTargetEvalFuncMissingWhenPackagePending(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "lib")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	assert.Equal(t, forge.OutcomeMissing, res.Outcome)
}

func TestConfiguredTargetEvalFuncFailsWhenTargetAbsentFromPackage(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	env.setReady(PackageKey(f.Package, "pkg"), forge.Value{Data: PackageValue{Dir: "pkg"}})
	env.setReady(ConfigurationCollectionKey(f.ConfigurationCollection), forge.Value{Data: ConfigurationCollectionValue{}})

	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "missing")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	require.Equal(t, forge.OutcomeFail, res.Outcome)
	assert.ErrorContains(t, res.Err, "no such target")
}

func TestConfiguredTargetEvalFuncMissingOnPendingDependency(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	env.setReady(PackageKey(f.Package, "pkg"), forge.Value{Data: PackageValue{
		Dir:     "pkg",
		Targets: map[string]TargetSpec{"bin": {Name: "bin", Deps: []string{"lib"}}},
	}})
	env.setReady(ConfigurationCollectionKey(f.ConfigurationCollection), forge.Value{Data: ConfigurationCollectionValue{}})

	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "bin")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	assert.Equal(t, forge.OutcomeMissing, res.Outcome)
}

func TestConfiguredTargetEvalFuncFailsWhenDependencyFailed(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	env.setReady(PackageKey(f.Package, "pkg"), forge.Value{Data: PackageValue{
		Dir:     "pkg",
		Targets: map[string]TargetSpec{"bin": {Name: "bin", Deps: []string{"lib"}}},
	}})
	env.setReady(ConfigurationCollectionKey(f.ConfigurationCollection), forge.Value{Data: ConfigurationCollectionValue{}})
	env.setErrored(ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "lib"))

	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "bin")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	require.Equal(t, forge.OutcomeFail, res.Outcome)
}

func TestConfiguredTargetEvalFuncResolvesDepsInOwnPackageByDefault(t *testing.T) {
	f := testFamilies()
	env := newFakeEnv()
	env.setReady(PackageKey(f.Package, "pkg"), forge.Value{Data: PackageValue{
		Dir:     "pkg",
		Targets: map[string]TargetSpec{"bin": {Name: "bin", Deps: []string{"lib"}}},
	}})
	env.setReady(ConfigurationCollectionKey(f.ConfigurationCollection), forge.Value{Data: ConfigurationCollectionValue{}})
	env.setReady(ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "lib"), forge.Value{Data: ConfiguredTargetValue{
		PackageDir: "pkg", Name: "lib",
	}})

	k := ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "bin")
	res := ConfiguredTargetEvalFunc(f)(context.Background(), k, env)
	require.Equal(t, forge.OutcomeValue, res.Outcome)
	v := res.Value.Data.(ConfiguredTargetValue)
	require.Len(t, v.DepKeys, 1)
	assert.Equal(t, ConfiguredTargetKey(f.ConfiguredTarget, "pkg", "lib"), v.DepKeys[0])
}
