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
	"fmt"
	"strings"
)

// ErrorKind distinguishes the ways a node can end up in state Error.
type ErrorKind int

const (
	// KindNode is a user-visible failure attributable to a specific key.
	KindNode ErrorKind = iota
	// KindCycle is a dependency cycle detected by the evaluator.
	KindCycle
	// KindTransient is shaped like KindNode but is cleared by the next
	// InvalidateErrors call so the build retries it.
	KindTransient
	// KindEngine is an internal invariant violation; it is never silently
	// recovered and should surface as an abrupt exit.
	KindEngine
)

func (k ErrorKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindCycle:
		return "cycle"
	case KindTransient:
		return "transient"
	case KindEngine:
		return "engine"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// NodeError is the error value stored on a node in state Error. It carries
// root causes (the keys whose failure caused this one) and, for cycle
// errors, the full canonical cycle.
type NodeError struct {
	Kind       ErrorKind
	Key        Key
	Cause      error
	RootCauses []Key
	CycleInfo  []Key
}

func (e *NodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Key)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if len(e.RootCauses) > 0 {
		fmt.Fprintf(&b, " (root causes:")
		for _, k := range e.RootCauses {
			fmt.Fprintf(&b, " %s", k)
		}
		b.WriteString(")")
	}
	if len(e.CycleInfo) > 0 {
		fmt.Fprintf(&b, " (cycle:")
		for _, k := range e.CycleInfo {
			fmt.Fprintf(&b, " %s ->", k)
		}
		fmt.Fprintf(&b, " %s)", e.CycleInfo[0])
	}
	return b.String()
}

func (e *NodeError) Unwrap() error { return e.Cause }

// CanonicalCycle rotates a cycle's participants to start at its
// lexicographically smallest member, so two
// discoveries of the same cycle from different starting points compare
// equal.
func CanonicalCycle(participants []Key) []Key {
	if len(participants) == 0 {
		return nil
	}
	minIdx := 0
	for i, k := range participants {
		if k.Less(participants[minIdx]) {
			minIdx = i
		}
	}
	out := make([]Key, len(participants))
	copy(out, participants[minIdx:])
	copy(out[len(participants)-minIdx:], participants[:minIdx])
	return out
}

// EngineError reports an internal invariant violation: a
// function returned Value after declaring Missing, a node left Building
// with no terminal transition, etc. These are programming errors in a
// registered EvalFunc or in the evaluator itself, never expected in
// correct operation, and are never downgraded to a NodeError.
type EngineError struct {
	Msg string
	Key Key
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("forge: engine invariant violated for %s: %s", e.Key, e.Msg)
}
