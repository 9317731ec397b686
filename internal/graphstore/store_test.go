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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozomi-build/forge"
)

func k(id string) forge.Key { return forge.NewKey(1, id) }

func TestBeginBuildReturnsPriorState(t *testing.T) {
	s := New(KeepEdgesFull)

	prior, err := s.BeginBuild(k("a"))
	require.NoError(t, err)
	assert.Equal(t, Absent, prior.State)

	s.Complete(k("a"), forge.Value{Data: 1}, nil, nil, 1)
	s.MarkDirty(k("a"), CauseInjected)

	prior, err = s.BeginBuild(k("a"))
	require.NoError(t, err)
	assert.Equal(t, Dirty, prior.State, "BeginBuild must report the node's state as it was before the Building transition")
}

func TestBeginBuildRejectsConcurrentBuild(t *testing.T) {
	s := New(KeepEdgesFull)
	_, err := s.BeginBuild(k("a"))
	require.NoError(t, err)

	_, err = s.BeginBuild(k("a"))
	assert.ErrorIs(t, err, ErrAlreadyBuilding)
}

func TestCompleteRewritesRdepsSymmetrically(t *testing.T) {
	s := New(KeepEdgesFull)
	_, err := s.BeginBuild(k("p"))
	require.NoError(t, err)
	s.Complete(k("p"), forge.Value{Data: "v"}, []forge.Key{k("d1"), k("d2")}, map[forge.Key]string{}, 1)

	d1 := s.Get(k("d1"))
	if diff := cmp.Diff([]forge.Key{k("p")}, d1.Rdeps); diff != "" {
		t.Errorf("d1 rdeps mismatch (-want +got):\n%s", diff)
	}

	// Re-complete p with only d2 as a dep: d1's rdep entry must be dropped.
	_, err = s.BeginBuild(k("p"))
	require.NoError(t, err)
	s.Complete(k("p"), forge.Value{Data: "v2"}, []forge.Key{k("d2")}, map[forge.Key]string{}, 2)

	d1 = s.Get(k("d1"))
	assert.Empty(t, d1.Rdeps)
	d2 := s.Get(k("d2"))
	assert.Contains(t, d2.Rdeps, k("p"))
}

func TestMarkDirtyPropagatesTransitively(t *testing.T) {
	s := New(KeepEdgesFull)
	_, _ = s.BeginBuild(k("base"))
	s.Complete(k("base"), forge.Value{Data: 1}, nil, nil, 1)

	_, _ = s.BeginBuild(k("mid"))
	s.Complete(k("mid"), forge.Value{Data: 2}, []forge.Key{k("base")}, map[forge.Key]string{k("base"): "1"}, 1)

	_, _ = s.BeginBuild(k("top"))
	s.Complete(k("top"), forge.Value{Data: 3}, []forge.Key{k("mid")}, map[forge.Key]string{k("mid"): "2"}, 1)

	changed := s.MarkDirty(k("base"), CauseInjected)
	assert.ElementsMatch(t, []forge.Key{k("base"), k("mid"), k("top")}, changed)
	assert.Equal(t, Dirty, s.Get(k("top")).State)
}

func TestKeepEdgesNoneDropsBookkeeping(t *testing.T) {
	s := New(KeepEdgesNone)
	_, _ = s.BeginBuild(k("p"))
	s.Complete(k("p"), forge.Value{Data: 1}, []forge.Key{k("d")}, map[forge.Key]string{k("d"): "x"}, 1)

	p := s.Get(k("p"))
	assert.Empty(t, p.Deps)
	d := s.Get(k("d"))
	assert.Empty(t, d.Rdeps)
}

func TestDeleteRemovesSurvivorReferences(t *testing.T) {
	s := New(KeepEdgesFull)
	_, _ = s.BeginBuild(k("d"))
	s.Complete(k("d"), forge.Value{Data: 1}, nil, nil, 1)
	_, _ = s.BeginBuild(k("p"))
	s.Complete(k("p"), forge.Value{Data: 2}, []forge.Key{k("d")}, map[forge.Key]string{k("d"): "1"}, 1)

	deleted := s.Delete(func(key forge.Key, _ Snapshot) bool { return key == k("p") })
	assert.Equal(t, []forge.Key{k("p")}, deleted)
	assert.Empty(t, s.Get(k("d")).Rdeps)
}

func TestErrorKeys(t *testing.T) {
	s := New(KeepEdgesFull)
	_, _ = s.BeginBuild(k("ok"))
	s.Complete(k("ok"), forge.Value{Data: 1}, nil, nil, 1)
	_, _ = s.BeginBuild(k("bad"))
	s.Fail(k("bad"), assertErr)

	assert.Equal(t, []forge.Key{k("bad")}, s.ErrorKeys())
}

var assertErr = &forge.NodeError{Kind: forge.KindNode, Key: k("bad")}
