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

	"github.com/nozomi-build/forge"
)

// fakeEnv is a minimal forge.Env double letting these tests drive a single
// EvalFunc in isolation, without spinning up a graph store or evaluator.
type fakeEnv struct {
	ready     map[forge.Key]forge.Value
	pending   map[forge.Key]struct{}
	errored   map[forge.Key]struct{}
	cancelled bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		ready:   map[forge.Key]forge.Value{},
		pending: map[forge.Key]struct{}{},
		errored: map[forge.Key]struct{}{},
	}
}

func (e *fakeEnv) setReady(k forge.Key, v forge.Value) { e.ready[k] = v }
func (e *fakeEnv) setPending(k forge.Key)               { e.pending[k] = struct{}{} }
func (e *fakeEnv) setErrored(k forge.Key)               { e.errored[k] = struct{}{} }

func (e *fakeEnv) Get(_ context.Context, k forge.Key) (forge.Value, forge.GetStatus) {
	if v, ok := e.ready[k]; ok {
		return v, forge.GetReady
	}
	if _, ok := e.errored[k]; ok {
		return forge.Value{}, forge.GetError
	}
	return forge.Value{}, forge.GetPending
}

func (e *fakeEnv) Cancelled() bool { return e.cancelled }
