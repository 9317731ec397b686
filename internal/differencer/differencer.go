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

// Package differencer implements C3: it buffers external "this key's value
// is now X" injections and "invalidate these keys" requests, and applies
// them to the graph store at the start of the next evaluation.
package differencer

import (
	"sync"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/graphstore"
)

type injection struct {
	key   forge.Key
	value forge.Value
}

// Differencer buffers pending graph mutations between evaluations.
type Differencer struct {
	mu               sync.Mutex
	injections       []injection
	invalidations    map[forge.Key]struct{}
	invalidateErrors bool
}

// New returns an empty Differencer.
func New() *Differencer {
	return &Differencer{invalidations: map[forge.Key]struct{}{}}
}

// Inject buffers forcing key k to value v at the next version.
func (d *Differencer) Inject(k forge.Key, v forge.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injections = append(d.injections, injection{k, v})
}

// Invalidate buffers marking keys dirty at the next version.
func (d *Differencer) Invalidate(keys ...forge.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		d.invalidations[k] = struct{}{}
	}
}

// InvalidateErrors buffers marking every Error node dirty at the next
// version, so a transient failure is retried on the next build.
func (d *Differencer) InvalidateErrors() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidateErrors = true
}

// Flush drains the buffer into store, bumping the version exactly once.
// Injections are applied before invalidations within the same flush, so a
// key injected in this build starts Done-at-the-new-version before any
// invalidation of it (or of something that depends on it) is considered.
func (d *Differencer) Flush(store *graphstore.Store) int64 {
	d.mu.Lock()
	injections := d.injections
	invalidations := d.invalidations
	invalidateErrors := d.invalidateErrors
	d.injections = nil
	d.invalidations = map[forge.Key]struct{}{}
	d.invalidateErrors = false
	d.mu.Unlock()

	version := store.BumpVersion()

	for _, inj := range injections {
		store.Inject(inj.key, inj.value, version)
	}
	for k := range invalidations {
		store.MarkDirty(k, graphstore.CauseInjected)
	}
	if invalidateErrors {
		for _, k := range store.ErrorKeys() {
			store.MarkDirty(k, graphstore.CauseDepChanged)
		}
	}

	return version
}
