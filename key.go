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

// Package forge implements the core of an incremental, memoizing,
// dependency-tracking build-graph evaluator: a dynamic directed graph of
// keyed computations whose values are reused across builds and invalidated
// precisely when their transitive inputs change.
package forge

import "fmt"

// Family names a key family: a tag identifying which registered function
// produces values for keys of this shape. Family is a finite, closed set
// assigned at registry-construction time.
type Family uint16

// Reserved families every façade wires up; concrete families specific to a
// driver's registry are assigned starting at FamilyUserBase.
const (
	FamilyInvalid Family = iota
	FamilyBuildVariable
	FamilyUserBase Family = 16
)

// Key is the identity of a memoized computation. Equality and hashing are
// structural: two keys with the same Family and ID name the same node.
// Keys are immutable, cheap to copy, and totally ordered by Less for
// deterministic iteration in error paths.
type Key struct {
	Family Family
	ID     string
}

// String returns a canonical textual form of the key, suitable for
// diagnostics and dedupe keys. Its string order is not the order of Less.
func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.Family, k.ID)
}

// Less orders keys deterministically, used to canonicalize cycle
// participant lists by rotating to the lexicographically smallest member.
func (k Key) Less(o Key) bool {
	if k.Family != o.Family {
		return k.Family < o.Family
	}
	return k.ID < o.ID
}

// NewKey builds a Key for the given family with an ID derived from the
// supplied components, joined the way ninja joins path and rule name: a
// single delimiter unlikely to collide within a component.
func NewKey(family Family, parts ...string) Key {
	id := parts[0]
	for _, p := range parts[1:] {
		id += "\x1f" + p
	}
	return Key{Family: family, ID: id}
}
