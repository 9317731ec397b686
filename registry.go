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

package forge

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the trichotomy an EvalFunc returns to the evaluator: a value,
// a request for more dependencies, or a failure.
type Outcome int

const (
	OutcomeValue Outcome = iota
	OutcomeMissing
	OutcomeFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValue:
		return "value"
	case OutcomeMissing:
		return "missing"
	case OutcomeFail:
		return "fail"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is what an EvalFunc returns for one invocation.
type Result struct {
	Outcome Outcome
	Value   Value
	Err     error
}

// Done builds a successful Result.
func Done(v Value) Result { return Result{Outcome: OutcomeValue, Value: v} }

// Missing builds a Result asking the evaluator to call the function again
// once the keys it requested through Env are available. The function need
// not repeat which keys those were: Env already recorded every key it
// touched this invocation, and that recorded set becomes the
// declared dependency list regardless of outcome.
func Missing() Result { return Result{Outcome: OutcomeMissing} }

// Fail builds a failed Result.
func Fail(err error) Result { return Result{Outcome: OutcomeFail, Err: err} }

// GetStatus reports why Env.Get could not return a ready value.
type GetStatus int

const (
	// GetReady means Value is populated and current.
	GetReady GetStatus = iota
	// GetPending means the key is not yet Done; the caller should
	// eventually return Missing() once it has issued all the requests it
	// needs for this invocation.
	GetPending
	// GetError means the key transitioned to Error during this version;
	// the caller should usually return Fail with the key as a root cause.
	GetError
)

// Env is the per-invocation handle an EvalFunc uses to request other keys'
// values. Implementations accumulate the full set of keys
// touched during the invocation, whether ready, pending, or errored; that
// set is the declared dependency list for this invocation.
type Env interface {
	// Get requests k's value. It never blocks: it returns immediately with
	// the status reflecting k's current state in this version.
	Get(ctx context.Context, k Key) (Value, GetStatus)

	// Cancelled reports whether the running evaluation has been asked to
	// stop. A function may check this and return Missing()
	// early; the evaluator treats that as a cooperative cancellation, not
	// an error.
	Cancelled() bool
}

// EvalFunc is the pure function registered for a key family.
// Functions must be deterministic modulo the values they request through
// Env; observing any other state is a contract violation, not something
// the evaluator can enforce.
type EvalFunc func(ctx context.Context, k Key, env Env) Result

// Registry is the configuration-time mapping from family tag to evaluator
// function (C1). It is built once, before any Evaluator runs, and is safe
// for concurrent reads thereafter.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Family]EvalFunc
	names map[Family]string
	next  Family
}

// NewRegistry returns an empty Registry. User families are assigned
// starting at FamilyUserBase so they never collide with reserved families
// such as FamilyBuildVariable.
func NewRegistry() *Registry {
	return &Registry{
		funcs: map[Family]EvalFunc{},
		names: map[Family]string{},
		next:  FamilyUserBase,
	}
}

// NewFamily allocates and registers the next available user family tag
// under the given diagnostic name, wiring fn as its evaluator function.
func (r *Registry) NewFamily(name string, fn EvalFunc) Family {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.next
	r.next++
	r.funcs[f] = fn
	r.names[f] = name
	return f
}

// Register wires fn as the evaluator function for an already-assigned
// family (used for reserved families like FamilyBuildVariable).
func (r *Registry) Register(f Family, name string, fn EvalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[f] = fn
	r.names[f] = name
}

// Lookup returns the evaluator function for f, if any was registered.
func (r *Registry) Lookup(f Family) (EvalFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[f]
	return fn, ok
}

// Name returns the diagnostic name registered for f, or a placeholder.
func (r *Registry) Name(f Family) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.names[f]; ok {
		return n
	}
	return fmt.Sprintf("family(%d)", f)
}
