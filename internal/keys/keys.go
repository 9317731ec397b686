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

// Package keys registers the concrete key families a forge-based build
// tool needs to be useful end to end: filesystem probes, package lookup,
// target configuration, action execution, and the closed set of build
// variables. None of this lives in the engine itself (package forge and
// its internal/graphstore, internal/differencer, internal/evaluator
// siblings know nothing about files or targets); it is the external
// collaborator layer the engine is generalized to support.
package keys

import "github.com/nozomi-build/forge"

// Families is the set of family tags this package registers. It is
// populated by RegisterAll and then threaded through key constructors
// elsewhere in this package (see file_state.go, package.go, target.go,
// action.go, configuration.go).
type Families struct {
	FileState               forge.Family
	DirectoryListing        forge.Family
	PackageLookup           forge.Family
	Package                 forge.Family
	ConfiguredTarget        forge.Family
	ActionExecution         forge.Family
	ConfigurationCollection forge.Family
}

// BuildVariable is a closed singleton-key family. Unlike the
// other families here it reuses the engine's reserved forge.FamilyBuildVariable
// tag rather than allocating a new one, since build variables are wired
// directly by the driver façade (C7), not evaluated by an EvalFunc of their
// own: they are injected, never computed.
type BuildVariableName string

const (
	DefaultVisibility        BuildVariableName = "default_visibility"
	DefaultsPackageContents  BuildVariableName = "defaults_package_contents"
	PackageLocator           BuildVariableName = "package_locator"
	TestEnvironmentVariables BuildVariableName = "test_environment_variables"
	BuildID                  BuildVariableName = "build_id"
	WorkspaceStatusAction    BuildVariableName = "workspace_status_action"
	BuildInfoFactories       BuildVariableName = "build_info_factories"
	TopLevelArtifactContext  BuildVariableName = "top_level_artifact_context"
	BadActionsSet            BuildVariableName = "bad_actions_set"
	DeletedPackages          BuildVariableName = "deleted_packages"
)

// BuildVariableKey returns the singleton Key for a given build variable.
func BuildVariableKey(name BuildVariableName) forge.Key {
	return forge.NewKey(forge.FamilyBuildVariable, string(name))
}
