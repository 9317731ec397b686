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
	"sync"

	"github.com/nozomi-build/forge"
)

// waitsOnGraph tracks, for the duration of one evaluation, which keys are
// currently blocked waiting on which other keys. It needs its own lock
// separate from the store's: cycle detection traverses this graph, not the
// full (much larger) dependency graph.
type waitsOnGraph struct {
	mu      sync.Mutex
	waitsOn map[forge.Key]map[forge.Key]struct{} // k -> set of deps k is blocked on
}

func newWaitsOnGraph() *waitsOnGraph {
	return &waitsOnGraph{waitsOn: map[forge.Key]map[forge.Key]struct{}{}}
}

// tryAddEdges attempts to record that k is now blocked on each key in deps.
// If adding any edge k->d would close a cycle (d can already reach k via
// existing wait edges), it returns the canonical cycle instead of adding
// anything: if traversing the blocked-on relation from d reaches k, a
// cycle exists.
func (w *waitsOnGraph) tryAddEdges(k forge.Key, deps []forge.Key) (cycle []forge.Key, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, d := range deps {
		if d == k {
			return forge.CanonicalCycle([]forge.Key{k}), false
		}
		// reachable(d, k) searches forward from d for k; its path already
		// ends at k, so it is the complete cycle k -> d -> ... -> k on its
		// own and must not have k appended again.
		if path, found := w.reachable(d, k); found {
			return forge.CanonicalCycle(path), false
		}
	}
	set := w.waitsOn[k]
	if set == nil {
		set = map[forge.Key]struct{}{}
		w.waitsOn[k] = set
	}
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return nil, true
}

// reachable reports whether target is reachable from start by following
// waits-on edges, returning the path start -> ... -> target if so.
func (w *waitsOnGraph) reachable(start, target forge.Key) ([]forge.Key, bool) {
	visited := map[forge.Key]struct{}{start: {}}
	queue := [][]forge.Key{{start}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		cur := path[len(path)-1]
		if cur == target {
			return path, true
		}
		for next := range w.waitsOn[cur] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			np := append(append([]forge.Key(nil), path...), next)
			queue = append(queue, np)
		}
	}
	return nil, false
}

// clear removes k's outgoing wait edges once it is rescheduled or resolved.
func (w *waitsOnGraph) clear(k forge.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.waitsOn, k)
}
