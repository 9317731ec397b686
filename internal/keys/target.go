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
	"sort"
	"strings"

	"github.com/nozomi-build/forge"
)

// ConfiguredTargetValue is the analyzed form of one target at one
// configuration: its direct dependencies resolved to other
// ConfiguredTarget keys, and the ActionExecution key that will produce its
// artifact. Grounded on ninja's dependency walk in graph.go's
// RecomputeDirty, generalized from file mtimes to arbitrary fingerprinted
// values.
type ConfiguredTargetValue struct {
	PackageDir string
	Name       string
	DepKeys    []forge.Key
	ActionKey  forge.Key
}

func (v ConfiguredTargetValue) Fingerprint() string {
	deps := make([]string, len(v.DepKeys))
	for i, d := range v.DepKeys {
		deps[i] = d.String()
	}
	sort.Strings(deps)
	return fmt.Sprintf("%s:%s:%s:%s", v.PackageDir, v.Name, strings.Join(deps, ","), v.ActionKey)
}

// ConfiguredTargetKey returns the Key for one target's analysis, identified
// by its owning package directory and target name.
func ConfiguredTargetKey(family forge.Family, pkgDir, name string) forge.Key {
	return forge.NewKey(family, pkgDir, name)
}

func splitTargetID(id string) (pkgDir, name string) {
	parts := strings.SplitN(id, "\x1f", 2)
	if len(parts) != 2 {
		return id, ""
	}
	return parts[0], parts[1]
}

// ConfiguredTargetEvalFunc analyzes one target: it reads its owning
// package's manifest, the active configuration, and recursively requests
// every declared dependency's own analysis, so a cycle among targets is
// caught by the evaluator's waits-on cycle detection rather than by any
// bookkeeping here.
func ConfiguredTargetEvalFunc(f Families) forge.EvalFunc {
	return func(ctx context.Context, k forge.Key, env forge.Env) forge.Result {
		pkgDir, name := splitTargetID(k.ID)

		pkgVal, status := env.Get(ctx, PackageKey(f.Package, pkgDir))
		if status == forge.GetError {
			return forge.Fail(fmt.Errorf("target %s: package %s failed", name, pkgDir))
		}
		if status == forge.GetPending {
			return forge.Missing()
		}
		pkg, _ := pkgVal.Data.(PackageValue)
		spec, ok := pkg.Targets[name]
		if !ok {
			return forge.Fail(fmt.Errorf("target %s: no such target in %s", name, pkgDir))
		}

		if _, status := env.Get(ctx, ConfigurationCollectionKey(f.ConfigurationCollection)); status != forge.GetReady {
			if status == forge.GetError {
				return forge.Fail(fmt.Errorf("target %s: configuration unavailable", name))
			}
			return forge.Missing()
		}

		depKeys := make([]forge.Key, 0, len(spec.Deps))
		pending := false
		for _, d := range spec.Deps {
			depPkg, depName := splitTargetID(d)
			if depName == "" {
				depPkg, depName = pkgDir, d
			}
			dk := ConfiguredTargetKey(f.ConfiguredTarget, depPkg, depName)
			depKeys = append(depKeys, dk)
			if _, status := env.Get(ctx, dk); status != forge.GetReady {
				if status == forge.GetError {
					return forge.Fail(fmt.Errorf("target %s: dependency %s failed", name, d))
				}
				pending = true
			}
		}
		if pending {
			return forge.Missing()
		}

		return forge.Done(forge.Value{Family: k.Family, Data: ConfiguredTargetValue{
			PackageDir: pkgDir,
			Name:       name,
			DepKeys:    depKeys,
			ActionKey:  ActionExecutionKey(f.ActionExecution, pkgDir, name),
		}})
	}
}
