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

// scheduler tracks, for the duration of one Evaluate call, which keys are
// still outstanding (active) and which are presently sitting in the queue
// or being processed by a worker (inflight), plus the Missing/reschedule
// bookkeeping of who is waiting on whom. active is what drives quiescence
// detection: when it empties, every requested key and everything it
// transitively needed has reached a terminal state and the run is done.
type scheduler struct {
	mu       sync.Mutex
	active   map[forge.Key]struct{}
	inflight map[forge.Key]struct{}
	begun    map[forge.Key]struct{}
	waiters  map[forge.Key]map[forge.Key]struct{} // dep -> keys blocked on dep
}

func newScheduler() *scheduler {
	return &scheduler{
		active:   map[forge.Key]struct{}{},
		inflight: map[forge.Key]struct{}{},
		begun:    map[forge.Key]struct{}{},
		waiters:  map[forge.Key]map[forge.Key]struct{}{},
	}
}

// markBegun reports whether this is the first time this run has reached
// process() for k. A key that returned Missing gets processed again once
// its deps resolve, but that retry must not call graphstore.BeginBuild a
// second time: the node is already Building, owned by this same run, not
// by some unrelated concurrent Evaluate call.
func (s *scheduler) markBegun(k forge.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.begun[k]; ok {
		return false
	}
	s.begun[k] = struct{}{}
	return true
}

// activate marks k as outstanding work if it is not already. It returns
// false if k was already active, meaning the caller must not count it
// again toward quiescence.
func (s *scheduler) activate(k forge.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[k]; ok {
		return false
	}
	s.active[k] = struct{}{}
	return true
}

// markInflight marks k as queued-or-processing. It returns false if k was
// already inflight, which the caller must treat as "don't push it again".
func (s *scheduler) markInflight(k forge.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[k]; ok {
		return false
	}
	s.inflight[k] = struct{}{}
	return true
}

func (s *scheduler) clearInflight(k forge.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, k)
}

// registerWait records that k is blocked on each key in deps. It also
// re-checks, under the same lock, whether any of those deps have since
// resolved (a dep can complete between the caller's pending() snapshot and
// this call); if any have, it skips registering on them and returns true so
// the caller can immediately re-enqueue k instead of leaving it waiting on a
// wakeup that already fired.
func (s *scheduler) registerWait(k forge.Key, deps []forge.Key, alreadyDone func(forge.Key) bool) (resolvedNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deps {
		if alreadyDone(d) {
			resolvedNow = true
			continue
		}
		set := s.waiters[d]
		if set == nil {
			set = map[forge.Key]struct{}{}
			s.waiters[d] = set
		}
		set[k] = struct{}{}
	}
	return resolvedNow
}

// resolve releases every key waiting on dep, marking each inflight (unless
// already inflight from some other path) and returning the ones that need
// to be pushed onto the work queue.
func (s *scheduler) resolve(dep forge.Key) []forge.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := s.waiters[dep]
	delete(s.waiters, dep)
	var toPush []forge.Key
	for w := range waiting {
		if _, ok := s.inflight[w]; ok {
			continue
		}
		s.inflight[w] = struct{}{}
		toPush = append(toPush, w)
	}
	return toPush
}

// isActive reports whether k is still outstanding work. A false result
// means finish (or finishGroup) already ran for k — any further pop of k
// off the queue is a stale wakeup racing that termination and must be
// dropped without touching wg again.
func (s *scheduler) isActive(k forge.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[k]
	return ok
}

// finish marks k terminal, removing it from the active set, and reports
// how many keys remain active (0 means the run is quiescent).
func (s *scheduler) finish(k forge.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, k)
	return len(s.active)
}

// finishGroup marks every key in group terminal in one locked pass and
// returns, per key, the waiters that should be pushed onto the queue —
// excluding any waiter that is itself a member of group. A cycle fails
// every participant together; without that exclusion, finishing one
// participant would resolve() and re-enqueue a sibling an instant before
// this same call finishes it too, racing this group's own termination of
// that sibling against a spurious re-invocation of its EvalFunc.
func (s *scheduler) finishGroup(group []forge.Key) map[forge.Key][]forge.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	inGroup := make(map[forge.Key]struct{}, len(group))
	for _, k := range group {
		inGroup[k] = struct{}{}
		delete(s.active, k)
		delete(s.inflight, k)
	}

	toPush := make(map[forge.Key][]forge.Key, len(group))
	for _, k := range group {
		waiting := s.waiters[k]
		delete(s.waiters, k)
		var push []forge.Key
		for w := range waiting {
			if _, ok := inGroup[w]; ok {
				continue
			}
			if _, ok := s.inflight[w]; ok {
				continue
			}
			s.inflight[w] = struct{}{}
			push = append(push, w)
		}
		toPush[k] = push
	}
	return toPush
}
