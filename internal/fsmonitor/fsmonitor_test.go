// Copyright 2016 Google Inc. All Rights Reserved.
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

package fsmonitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestMonitorReportsWrittenFile exercises the happy path against the real
// filesystem: fsnotify's delivery timing is inherently asynchronous, so
// this waits on a buffered channel with a generous timeout rather than
// asserting on a fixed number of events.
func TestMonitorReportsWrittenFile(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan string, 16)

	m, err := New([]string{dir}, zerolog.Nop(), func(paths []string) {
		for _, p := range paths {
			changes <- p
		}
	})
	require.NoError(t, err)
	defer m.Close()

	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	select {
	case p := <-changes:
		require.Equal(t, target, p)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fs change notification")
	}
}

// TestMonitorWatchesNewSubdirectories confirms a directory created after
// the watcher starts is itself picked up, so files written inside it are
// also reported without needing a fresh Monitor.
func TestMonitorWatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan string, 16)

	m, err := New([]string{dir}, zerolog.Nop(), func(paths []string) {
		for _, p := range paths {
			changes <- p
		}
	})
	require.NoError(t, err)
	defer m.Close()

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-changes:
			// Drain until the subdirectory's own watch is armed, then
			// verify a file written inside it is reported too.
			inner := filepath.Join(sub, "b.txt")
			require.NoError(t, os.WriteFile(inner, []byte("hi"), 0o644))
			select {
			case p := <-changes:
				require.Equal(t, inner, p)
				return
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for nested file notification")
			}
		case <-deadline:
			t.Fatal("timed out waiting for subdirectory creation notification")
		}
	}
}
