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

// Package driver implements C7: the single façade a caller drives a build
// through. It owns the registry, graph store, differencer, evaluator, and
// the external-collaborator families of internal/keys, and serializes
// all build phases through one shared mutex so that two phase calls from,
// say, a file watcher callback and a CLI command never interleave
// mutations to the same graph store.
package driver

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/differencer"
	"github.com/nozomi-build/forge/internal/evaluator"
	"github.com/nozomi-build/forge/internal/executor"
	"github.com/nozomi-build/forge/internal/graphstore"
	"github.com/nozomi-build/forge/internal/keys"
	"github.com/nozomi-build/forge/internal/progress"
)

// Config configures a Driver at construction time.
type Config struct {
	// Batch, when true, constructs the graph store with KeepEdgesNone:
	// dep/rdep bookkeeping is dropped after each Complete, trading away
	// incremental rebuilds for lower memory in a single-shot evaluation.
	Batch bool

	// Threads bounds the evaluator's worker pool. Zero defaults to 1.
	Threads int

	// ActionConcurrency bounds how many ActionExecution commands run at
	// once, independent of Threads: analysis and execution are scaled
	// separately.
	ActionConcurrency int64

	Log zerolog.Logger
}

// Driver is the single entry point a caller builds through.
type Driver struct {
	store      *graphstore.Store
	registry   *forge.Registry
	diff       *differencer.Differencer
	eval       *evaluator.Evaluator
	progress   *progress.FanOut
	logRecv    *progress.LogReceiver
	keyFams    keys.Families
	log        zerolog.Logger

	phaseMu sync.Mutex // single-flight: one phase (Evaluate call) at a time
}

// New constructs a Driver and its registered key families, but performs no
// evaluation: callers must SetExternalInput the required build variables
// before the first Evaluate-driving call.
func New(cfg Config) *Driver {
	keepEdges := graphstore.KeepEdgesFull
	if cfg.Batch {
		keepEdges = graphstore.KeepEdgesNone
	}
	store := graphstore.New(keepEdges)
	reg := forge.NewRegistry()

	actionConcurrency := cfg.ActionConcurrency
	if actionConcurrency < 1 {
		actionConcurrency = 200
	}
	pool := executor.NewPool(actionConcurrency)
	fams := keys.RegisterAll(reg, pool)

	logRecv := progress.NewLogReceiver(cfg.Log, maxInt(cfg.Threads, 1))
	fan := progress.NewFanOut(logRecv)

	ev := evaluator.New(store, reg,
		evaluator.WithThreads(cfg.Threads),
		evaluator.WithProgress(fan),
		evaluator.WithLogger(cfg.Log),
	)

	d := &Driver{
		store:    store,
		registry: reg,
		diff:     differencer.New(),
		eval:     ev,
		progress: fan,
		logRecv:  logRecv,
		keyFams:  fams,
		log:      cfg.Log,
	}
	d.SetDeletedPackages(nil)
	return d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetExternalInput injects a build variable: package locator,
// default visibility, client environment, command id, etc.
func (d *Driver) SetExternalInput(name keys.BuildVariableName, value any) {
	d.diff.Inject(keys.BuildVariableKey(name), forge.Value{Family: forge.FamilyBuildVariable, Data: value})
}

// SetDeletedPackages declares names as deleted out-of-band from their
// on-disk state: the next evaluation of their PackageLookup fails
// immediately, without touching the filesystem, and reverting the
// deletion (calling SetDeletedPackages again without that name) restores
// the prior value without re-parsing the package if the underlying files
// are unchanged, since PackageLookupEvalFunc's result is pruned like any
// other dependency.
func (d *Driver) SetDeletedPackages(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	d.SetExternalInput(keys.DeletedPackages, set)
}

// NotifyModifiedPaths invalidates the FileState and DirectoryListing keys
// for every path in paths (and each path's parent directory listing, since
// a file's creation or deletion changes its directory's entry set too).
func (d *Driver) NotifyModifiedPaths(paths []string) {
	var ks []forge.Key
	for _, p := range paths {
		ks = append(ks, keys.FileStateKey(d.keyFams.FileState, p))
		ks = append(ks, keys.DirectoryListingKey(d.keyFams.DirectoryListing, p))
		ks = append(ks, keys.DirectoryListingKey(d.keyFams.DirectoryListing, filepath.Dir(p)))
	}
	d.diff.Invalidate(ks...)
}

// InvalidateErrors marks every currently-failed key dirty so the next
// build retries it.
func (d *Driver) InvalidateErrors() {
	d.diff.InvalidateErrors()
}

// InvalidateConfigurationCollection forces the singleton configuration key
// to be re-evaluated, which transitively re-evaluates every ConfiguredTarget
// and ActionExecution that reads it.
func (d *Driver) InvalidateConfigurationCollection() {
	d.diff.Invalidate(keys.ConfigurationCollectionKey(d.keyFams.ConfigurationCollection))
}

// DropConfiguredTargets evicts every ConfiguredTarget and ActionExecution
// node, forcing a full re-analysis on the next build (used when the set of
// registered target families itself changes, not merely their inputs).
func (d *Driver) DropConfiguredTargets() []forge.Key {
	return d.store.Delete(func(k forge.Key, _ graphstore.Snapshot) bool {
		return k.Family == d.keyFams.ConfiguredTarget || k.Family == d.keyFams.ActionExecution
	})
}

// DeleteOldNodes evicts nodes continuously Dirty for more than window
// versions.
func (d *Driver) DeleteOldNodes(window int64) []forge.Key {
	stale := d.store.DirtyOlderThan(window)
	return d.store.Delete(func(k forge.Key, snap graphstore.Snapshot) bool {
		for _, s := range stale {
			if s == k {
				return true
			}
		}
		return false
	})
}

// InjectEmbedded sets a build variable to a fixed value the façade itself
// owns, as opposed to one sourced from a config file or CLI flag. It is
// SetExternalInput under a name that makes the call sites in Reset read as
// what they are: defaults the façade bakes in, not external configuration.
func (d *Driver) InjectEmbedded(name keys.BuildVariableName, value any) {
	d.SetExternalInput(name, value)
}

// Reset re-injects the façade-owned embedded-artifact singletons: a fresh
// BuildID, minted via uuid on every Reset call (the build phases do not
// mint a new one), and the WorkspaceStatusAction default (no
// action configured) so that build variable is never left uninjected when
// a caller has not set one explicitly.
func (d *Driver) Reset() {
	d.InjectEmbedded(keys.BuildID, uuid.NewString())
	d.InjectEmbedded(keys.WorkspaceStatusAction, "")
}

// EvaluateConfigurations flushes pending mutations and evaluates the
// singleton ConfigurationCollection key, returning its value.
func (d *Driver) EvaluateConfigurations(ctx context.Context) (keys.ConfigurationCollectionValue, error) {
	d.phaseMu.Lock()
	defer d.phaseMu.Unlock()

	d.diff.Flush(d.store)
	k := keys.ConfigurationCollectionKey(d.keyFams.ConfigurationCollection)
	results, err := d.eval.Evaluate(ctx, []forge.Key{k}, false)
	if err != nil {
		return keys.ConfigurationCollectionValue{}, err
	}
	res := results[k]
	if res.Kind == evaluator.ResultFail {
		return keys.ConfigurationCollectionValue{}, res.Err
	}
	cc, _ := res.Value.Data.(keys.ConfigurationCollectionValue)
	return cc, nil
}

// EvaluateTargetPatterns resolves package names to directories by
// evaluating only their PackageLookup keys, in keep-going mode. It does not
// parse the packages or check any target names, and runs no actions.
func (d *Driver) EvaluateTargetPatterns(ctx context.Context, packageNames []string) (map[string]keys.PackageLookupValue, error) {
	d.phaseMu.Lock()
	defer d.phaseMu.Unlock()

	d.diff.Flush(d.store)
	reqKeys := make([]forge.Key, len(packageNames))
	for i, n := range packageNames {
		reqKeys[i] = keys.PackageLookupKey(d.keyFams.PackageLookup, n)
	}
	results, keepGoingErr := d.eval.Evaluate(ctx, reqKeys, true)

	out := make(map[string]keys.PackageLookupValue, len(packageNames))
	for i, n := range packageNames {
		res := results[reqKeys[i]]
		if res.Kind == evaluator.ResultValue {
			out[n], _ = res.Value.Data.(keys.PackageLookupValue)
		}
	}
	return out, keepGoingErr
}

// Analyze drives ConfiguredTarget evaluation (but not action execution) for
// each (package, target) pair, with keepGoing semantics.
func (d *Driver) Analyze(ctx context.Context, pkgDir string, names []string, keepGoing bool) (map[string]evaluator.KeyResult, error) {
	d.phaseMu.Lock()
	defer d.phaseMu.Unlock()

	d.diff.Flush(d.store)
	reqKeys := make([]forge.Key, len(names))
	for i, n := range names {
		reqKeys[i] = keys.ConfiguredTargetKey(d.keyFams.ConfiguredTarget, pkgDir, n)
	}
	results, err := d.eval.Evaluate(ctx, reqKeys, keepGoing)

	out := make(map[string]evaluator.KeyResult, len(names))
	for i, n := range names {
		out[n] = results[reqKeys[i]]
	}
	return out, err
}

// Execute drives ActionExecution evaluation for each (package, target)
// pair, transitively analyzing and building every dependency along the
// way. This is the top-level "build" operation.
func (d *Driver) Execute(ctx context.Context, pkgDir string, names []string, keepGoing bool) (map[string]evaluator.KeyResult, error) {
	d.phaseMu.Lock()
	defer d.phaseMu.Unlock()

	d.diff.Flush(d.store)
	reqKeys := make([]forge.Key, len(names))
	for i, n := range names {
		reqKeys[i] = keys.ActionExecutionKey(d.keyFams.ActionExecution, pkgDir, n)
	}
	results, err := d.eval.Evaluate(ctx, reqKeys, keepGoing)

	out := make(map[string]evaluator.KeyResult, len(names))
	for i, n := range names {
		out[n] = results[reqKeys[i]]
	}
	return out, err
}

// CallUninterruptibly runs fn with a context that ignores the caller's
// cancellation, the façade's legacy escape hatch for a phase that must not
// be interrupted partway.
func (d *Driver) CallUninterruptibly(fn func(ctx context.Context) error) error {
	return fn(context.Background())
}

// Counts returns the running enqueued/evaluated/failed totals observed by
// the façade's built-in log receiver.
func (d *Driver) Counts() (enqueued, evaluated, failed int64) {
	return d.logRecv.Counts()
}
