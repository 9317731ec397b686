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

package graphstore

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/nozomi-build/forge"
)

// KeepEdges controls whether dep/rdep bookkeeping is retained after a node
// completes. KeepEdgesNone trades away incremental rebuilds for
// lower memory use in single-shot batch evaluations.
type KeepEdges int

const (
	KeepEdgesFull KeepEdges = iota
	KeepEdgesNone
)

const shardCount = 64

type shard struct {
	mu    sync.RWMutex
	nodes map[forge.Key]*Node
}

// Store is the in-memory, sharded graph store (C2). Lookup and concurrent
// reads never block each other across shards; mutation of a single node is
// serialized by that node's own mutex, which is finer than a global lock
// and coarser than lock-free.
type Store struct {
	shards    [shardCount]*shard
	keepEdges KeepEdges
	version   atomic.Int64
}

// New returns an empty Store.
func New(keepEdges KeepEdges) *Store {
	s := &Store{keepEdges: keepEdges}
	for i := range s.shards {
		s.shards[i] = &shard{nodes: map[forge.Key]*Node{}}
	}
	return s
}

// Version returns the graph's current version counter.
func (s *Store) Version() int64 { return s.version.Load() }

// BumpVersion advances and returns the new version. Called exactly once
// per evaluation by the differencer's flush.
func (s *Store) BumpVersion() int64 { return s.version.Add(1) }

func (s *Store) shardFor(k forge.Key) *shard {
	h := fnv.New64a()
	fmt.Fprint(h, k.Family, ":", k.ID)
	return s.shards[h.Sum64()%shardCount]
}

func (s *Store) createOrGetLocked(k forge.Key) *Node {
	sh := s.shardFor(k)
	sh.mu.RLock()
	if n, ok := sh.nodes[k]; ok {
		sh.mu.RUnlock()
		return n
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if n, ok := sh.nodes[k]; ok {
		return n
	}
	n := &Node{key: k, state: Absent, rdeps: map[forge.Key]struct{}{}, sigs: map[forge.Key]string{}}
	sh.nodes[k] = n
	return n
}

// CreateOrGet idempotently creates (as Absent) or returns the existing node
// for k.
func (s *Store) CreateOrGet(k forge.Key) Snapshot {
	n := s.createOrGetLocked(k)
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// Get returns a snapshot of the node for k, or an Absent snapshot if it has
// never been referenced.
func (s *Store) Get(k forge.Key) Snapshot {
	sh := s.shardFor(k)
	sh.mu.RLock()
	n, ok := sh.nodes[k]
	sh.mu.RUnlock()
	if !ok {
		return Snapshot{Key: k, State: Absent}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// ErrAlreadyBuilding is returned by BeginBuild when the node is already
// Building.
var ErrAlreadyBuilding = fmt.Errorf("graphstore: node already building")

// BeginBuild atomically transitions a node from any state other than
// Building (normally Absent or Dirty) to Building. The returned Snapshot reflects the node as it was *before* the
// transition (its prior state, deps, and sigs), which is what callers need
// to decide whether a Dirty node is eligible for change-pruning.
func (s *Store) BeginBuild(k forge.Key) (Snapshot, error) {
	n := s.createOrGetLocked(k)
	n.mu.Lock()
	defer n.mu.Unlock()
	prior := n.snapshotLocked()
	if n.state == Building {
		return prior, ErrAlreadyBuilding
	}
	n.state = Building
	return prior, nil
}

// Complete transitions a Building node to Done, recording its value and
// rewriting dep/rdep edges by diffing against the previous dep list
//. sigs is the fingerprint of each new dep's value, recorded
// for the next revalidation's change-pruning check.
func (s *Store) Complete(k forge.Key, v forge.Value, deps []forge.Key, sigs map[forge.Key]string, version int64) {
	n := s.createOrGetLocked(k)

	n.mu.Lock()
	oldDeps := n.deps
	n.state = Done
	n.value = v
	n.err = nil
	n.version = version
	if s.keepEdges == KeepEdgesFull {
		n.deps = append([]forge.Key(nil), deps...)
		n.sigs = sigs
	} else {
		n.deps = nil
		n.sigs = nil
	}
	n.mu.Unlock()

	if s.keepEdges == KeepEdgesFull {
		s.rewriteRdeps(k, oldDeps, deps)
	}
}

// rewriteRdeps adds k to the rdeps of every key in newDeps not present in
// oldDeps, and removes k from the rdeps of every key in oldDeps no longer
// present in newDeps.
func (s *Store) rewriteRdeps(k forge.Key, oldDeps, newDeps []forge.Key) {
	oldSet := make(map[forge.Key]struct{}, len(oldDeps))
	for _, d := range oldDeps {
		oldSet[d] = struct{}{}
	}
	newSet := make(map[forge.Key]struct{}, len(newDeps))
	for _, d := range newDeps {
		newSet[d] = struct{}{}
	}
	for d := range newSet {
		if _, ok := oldSet[d]; ok {
			continue
		}
		dn := s.createOrGetLocked(d)
		dn.mu.Lock()
		dn.rdeps[k] = struct{}{}
		dn.mu.Unlock()
	}
	for d := range oldSet {
		if _, ok := newSet[d]; ok {
			continue
		}
		dn := s.createOrGetLocked(d)
		dn.mu.Lock()
		delete(dn.rdeps, k)
		dn.mu.Unlock()
	}
}

// Fail transitions a Building node to Error.
func (s *Store) Fail(k forge.Key, err error) {
	n := s.createOrGetLocked(k)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = Error
	n.err = err
	n.value = forge.Value{}
}

// MarkDirty marks k Dirty (if it is Done or Error) and transitively marks
// every node that observed k (its rdeps) Dirty as well, synchronously,
// without rebuilding anything. It returns the set of
// keys that actually changed state, in no particular order.
func (s *Store) MarkDirty(k forge.Key, cause DirtyCause) []forge.Key {
	var changed []forge.Key
	queue := []forge.Key{k}
	seen := map[forge.Key]struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}

		sh := s.shardFor(cur)
		sh.mu.RLock()
		n, ok := sh.nodes[cur]
		sh.mu.RUnlock()
		if !ok {
			continue
		}

		n.mu.Lock()
		if n.state == Done || n.state == Error {
			n.state = Dirty
			n.dirtySinceVersion = s.Version()
			changed = append(changed, cur)
			rdeps := make([]forge.Key, 0, len(n.rdeps))
			for r := range n.rdeps {
				rdeps = append(rdeps, r)
			}
			n.mu.Unlock()
			queue = append(queue, rdeps...)
		} else {
			n.mu.Unlock()
		}
	}
	_ = cause
	return changed
}

// Delete evicts every node matching predicate and removes references to
// them from the rdeps of their former dependencies.
func (s *Store) Delete(predicate func(forge.Key, Snapshot) bool) []forge.Key {
	var deleted []forge.Key
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, n := range sh.nodes {
			n.mu.Lock()
			snap := n.snapshotLocked()
			matches := predicate(k, snap)
			n.mu.Unlock()
			if matches {
				delete(sh.nodes, k)
				deleted = append(deleted, k)
			}
		}
		sh.mu.Unlock()
	}
	for _, k := range deleted {
		// Best-effort: drop k from any surviving node's rdeps set.
		for _, sh := range s.shards {
			sh.mu.RLock()
			nodes := make([]*Node, 0, len(sh.nodes))
			for _, n := range sh.nodes {
				nodes = append(nodes, n)
			}
			sh.mu.RUnlock()
			for _, n := range nodes {
				n.mu.Lock()
				delete(n.rdeps, k)
				n.mu.Unlock()
			}
		}
	}
	return deleted
}

// DirtyOlderThan returns keys that have been continuously Dirty since
// before version-window.
func (s *Store) DirtyOlderThan(window int64) []forge.Key {
	cutoff := s.Version() - window
	var out []forge.Key
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, n := range sh.nodes {
			n.mu.Lock()
			if n.state == Dirty && n.dirtySinceVersion < cutoff {
				out = append(out, k)
			}
			n.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
	return out
}

// ErrorKeys returns every key currently in state Error.
func (s *Store) ErrorKeys() []forge.Key {
	var out []forge.Key
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, n := range sh.nodes {
			n.mu.Lock()
			if n.state == Error {
				out = append(out, k)
			}
			n.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
	return out
}

// Inject forces k to Done with value v at the given version, bypassing any
// evaluator function. Its dep list is empty: injected keys are graph
// roots. A key injected for the first time has no rdeps yet and this is
// equivalent to a plain Complete; re-injecting a key that was already read
// by other nodes also marks those rdeps (and everything transitively
// reading them) Dirty, the same propagation MarkDirty does for an
// explicit invalidation, so change propagation works for roots whose new
// value arrives via injection rather than invalidation.
func (s *Store) Inject(k forge.Key, v forge.Value, version int64) {
	n := s.createOrGetLocked(k)
	n.mu.Lock()
	rdeps := make([]forge.Key, 0, len(n.rdeps))
	for r := range n.rdeps {
		rdeps = append(rdeps, r)
	}
	n.mu.Unlock()

	s.Complete(k, v, nil, nil, version)

	for _, r := range rdeps {
		s.MarkDirty(r, CauseDepChanged)
	}
}
