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

// Package graphstore implements the graph store (C2): the in-memory,
// concurrency-safe associative store of Nodes keyed by forge.Key, each
// carrying its current value, dependency list, reverse-dependency list,
// and dirtiness state. Grounded on the Node/Edge bookkeeping in
// ninja's graph.go and state.go, generalized from files-and-build-edges
// to arbitrary keyed computations.
package graphstore

import (
	"sync"

	"github.com/nozomi-build/forge"
)

// State is a node's lifecycle stage.
type State int

const (
	Absent State = iota
	Dirty
	Building
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Dirty:
		return "dirty"
	case Building:
		return "building"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return "state(?)"
	}
}

// DirtyCause names why MarkDirty is being called. The store does not keep
// it on the node.
type DirtyCause int

const (
	CauseInjected DirtyCause = iota
	CauseDepChanged
)

// Node is the unit stored in the graph. All mutation goes through
// Store's API; a Node is never mutated directly by callers.
type Node struct {
	mu sync.Mutex

	key   forge.Key
	state State
	value forge.Value
	err   error

	deps  []forge.Key
	rdeps map[forge.Key]struct{}

	version int64

	// sigs is the fingerprint of each dep's value as of this node's last
	// completion, used by the evaluator's change-pruning fast path.
	sigs map[forge.Key]string

	// dirtySinceVersion is the version at which this node most recently
	// transitioned to Dirty; used by delete_old_nodes.
	dirtySinceVersion int64
}

// Snapshot is an immutable, point-in-time copy of a node's visible fields.
type Snapshot struct {
	Key     forge.Key
	State   State
	Value   forge.Value
	Err     error
	Deps    []forge.Key
	Rdeps   []forge.Key
	Version int64
	Sigs    map[forge.Key]string

	DirtySinceVersion int64
}

func (n *Node) snapshotLocked() Snapshot {
	deps := make([]forge.Key, len(n.deps))
	copy(deps, n.deps)
	rdeps := make([]forge.Key, 0, len(n.rdeps))
	for k := range n.rdeps {
		rdeps = append(rdeps, k)
	}
	sigs := make(map[forge.Key]string, len(n.sigs))
	for k, v := range n.sigs {
		sigs[k] = v
	}
	return Snapshot{
		Key:               n.key,
		State:             n.state,
		Value:             n.value,
		Err:               n.err,
		Deps:              deps,
		Rdeps:             rdeps,
		Version:           n.version,
		Sigs:              sigs,
		DirtySinceVersion: n.dirtySinceVersion,
	}
}
