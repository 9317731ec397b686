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
	"fmt"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/executor"
)

// RegisterAll allocates every family this package knows how to evaluate
// against reg and wires their EvalFuncs, including the reserved
// FamilyBuildVariable family, whose values are injected by the driver
// façade rather than computed (its EvalFunc exists only so a key that was
// never injected fails loudly instead of blocking forever).
func RegisterAll(reg *forge.Registry, pool *executor.Pool) Families {
	var f Families
	f.FileState = reg.NewFamily("file_state", FileStateEvalFunc)
	f.DirectoryListing = reg.NewFamily("directory_listing", DirectoryListingEvalFunc)
	f.PackageLookup = reg.NewFamily("package_lookup", PackageLookupEvalFunc)
	f.Package = reg.NewFamily("package", PackageEvalFunc)
	f.ConfigurationCollection = reg.NewFamily("configuration_collection", ConfigurationCollectionEvalFunc)

	// ConfiguredTarget and ActionExecution close over the family table
	// itself (they reference each other's and Package's family tags), so
	// they are allocated first and registered second.
	f.ConfiguredTarget = reg.NewFamily("configured_target", nil)
	f.ActionExecution = reg.NewFamily("action_execution", nil)
	reg.Register(f.ConfiguredTarget, "configured_target", ConfiguredTargetEvalFunc(f))
	reg.Register(f.ActionExecution, "action_execution", ActionExecutionEvalFunc(f, pool))

	reg.Register(forge.FamilyBuildVariable, "build_variable", buildVariableEvalFunc)
	return f
}

// buildVariableEvalFunc never runs for a build variable that was properly
// injected (Inject bypasses the registry entirely); it exists to turn a
// forgotten set_external_input call into a clear Fail rather than a node
// stuck Absent forever.
func buildVariableEvalFunc(_ context.Context, k forge.Key, _ forge.Env) forge.Result {
	return forge.Fail(fmt.Errorf("build variable %s was never injected via set_external_input", k))
}
