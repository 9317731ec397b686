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

package evaluator

import (
	"context"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/graphstore"
)

// taskEnv implements forge.Env for a single invocation of a single key's
// EvalFunc. It accumulates every key it touches, in request order, which
// becomes the declared dependency list for this invocation regardless of
// outcome.
type taskEnv struct {
	r        *run
	store    *graphstore.Store
	touched  []forge.Key
	seen     map[forge.Key]struct{}
	anyError bool
}

func newTaskEnv(r *run, store *graphstore.Store) *taskEnv {
	return &taskEnv{r: r, store: store, seen: map[forge.Key]struct{}{}}
}

func (e *taskEnv) Get(_ context.Context, k forge.Key) (forge.Value, forge.GetStatus) {
	if _, ok := e.seen[k]; !ok {
		e.seen[k] = struct{}{}
		e.touched = append(e.touched, k)
	}
	snap := e.store.Get(k)
	switch snap.State {
	case graphstore.Done:
		return snap.Value, forge.GetReady
	case graphstore.Error:
		e.anyError = true
		return forge.Value{}, forge.GetError
	default:
		return forge.Value{}, forge.GetPending
	}
}

func (e *taskEnv) Cancelled() bool {
	return e.r.cancelled.Load()
}

// pending returns the keys touched this invocation that are not yet Done,
// in request order, deduplicated.
func (e *taskEnv) pending() []forge.Key {
	var out []forge.Key
	for _, k := range e.touched {
		if e.store.Get(k).State != graphstore.Done {
			out = append(out, k)
		}
	}
	return out
}
