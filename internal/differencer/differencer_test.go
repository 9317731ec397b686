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

package differencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/graphstore"
)

func TestFlushAppliesInjectionsBeforeInvalidations(t *testing.T) {
	store := graphstore.New(graphstore.KeepEdgesFull)
	d := New()

	key := forge.NewKey(1, "a")
	d.Inject(key, forge.Value{Data: 1})
	d.Invalidate(key)

	version := d.Flush(store)
	assert.Equal(t, int64(1), version)

	// Injected-then-invalidated in the same flush: the key should end up
	// Dirty, not stuck Absent, since the injection ran first.
	snap := store.Get(key)
	assert.Equal(t, graphstore.Dirty, snap.State)
}

func TestFlushBumpsVersionExactlyOnce(t *testing.T) {
	store := graphstore.New(graphstore.KeepEdgesFull)
	d := New()
	d.Inject(forge.NewKey(1, "a"), forge.Value{Data: 1})
	d.Inject(forge.NewKey(1, "b"), forge.Value{Data: 2})
	d.Invalidate(forge.NewKey(1, "c"))

	before := store.Version()
	d.Flush(store)
	assert.Equal(t, before+1, store.Version())
}

func TestInvalidateErrorsRetriesFailedNodes(t *testing.T) {
	store := graphstore.New(graphstore.KeepEdgesFull)
	key := forge.NewKey(1, "bad")
	_, _ = store.BeginBuild(key)
	store.Fail(key, assertErr)

	d := New()
	d.InvalidateErrors()
	d.Flush(store)

	assert.Equal(t, graphstore.Dirty, store.Get(key).State)
}

var assertErr = &forge.NodeError{Kind: forge.KindNode}
