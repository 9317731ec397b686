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

// ActionExecutionValue is the artifact of running one target's command.
type ActionExecutionValue struct {
	PackageDir string
	Name       string
	ExitCode   int
	Output     string
}

func (v ActionExecutionValue) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%d", v.PackageDir, v.Name, v.ExitCode)
}

// ActionExecutionKey returns the Key for one target's action execution.
func ActionExecutionKey(family forge.Family, pkgDir, name string) forge.Key {
	return forge.NewKey(family, pkgDir, name)
}

// ActionExecutionEvalFunc runs the command declared for a target once its
// ConfiguredTarget analysis (and transitively, its dependencies' own
// actions) is ready, mirroring ninja's "ready when all inputs ready"
// scheduling idea (build.go's Plan) but leaving the actual readiness
// tracking to the generic evaluator instead of a bespoke priority queue.
func ActionExecutionEvalFunc(f Families, pool *executor.Pool) forge.EvalFunc {
	return func(ctx context.Context, k forge.Key, env forge.Env) forge.Result {
		pkgDir, name := splitTargetID(k.ID)

		ctVal, status := env.Get(ctx, ConfiguredTargetKey(f.ConfiguredTarget, pkgDir, name))
		if status == forge.GetError {
			return forge.Fail(fmt.Errorf("action %s: target analysis failed", name))
		}
		if status == forge.GetPending {
			return forge.Missing()
		}
		ct, _ := ctVal.Data.(ConfiguredTargetValue)

		for _, dk := range ct.DepKeys {
			depCT, status := env.Get(ctx, dk)
			if status != forge.GetReady {
				if status == forge.GetError {
					return forge.Fail(fmt.Errorf("action %s: dependency analysis failed", name))
				}
				return forge.Missing()
			}
			dep, _ := depCT.Data.(ConfiguredTargetValue)
			if _, status := env.Get(ctx, dep.ActionKey); status != forge.GetReady {
				if status == forge.GetError {
					return forge.Fail(fmt.Errorf("action %s: dependency action failed", name))
				}
				return forge.Missing()
			}
		}

		pkgVal, status := env.Get(ctx, PackageKey(f.Package, pkgDir))
		if status != forge.GetReady {
			if status == forge.GetError {
				return forge.Fail(fmt.Errorf("action %s: package unavailable", name))
			}
			return forge.Missing()
		}
		pkg, _ := pkgVal.Data.(PackageValue)
		spec, ok := pkg.Targets[name]
		if !ok || spec.Command == "" {
			return forge.Done(forge.Value{Family: k.Family, Data: ActionExecutionValue{PackageDir: pkgDir, Name: name}})
		}

		if env.Cancelled() {
			return forge.Missing()
		}

		res, err := pool.Run(ctx, spec.Command, false)
		if err != nil {
			return forge.Fail(fmt.Errorf("action %s: %w", name, err))
		}
		if res.Status == executor.StatusFailure {
			return forge.Fail(fmt.Errorf("action %s: command %q exited %d: %s", name, spec.Command, res.ExitCode, res.Output))
		}
		return forge.Done(forge.Value{Family: k.Family, Data: ActionExecutionValue{
			PackageDir: pkgDir,
			Name:       name,
			ExitCode:   res.ExitCode,
			Output:     res.Output,
		}})
	}
}
