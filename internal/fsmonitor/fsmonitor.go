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

// Package fsmonitor is the concrete filesystem-probe layer feeding
// Driver.NotifyModifiedPaths: it watches a set of
// directory roots and translates OS-level change events into the path
// lists the façade invalidates. The engine itself has no notion of files
// or watches; this package is the external mutable-input producer that
// feeds it.
package fsmonitor

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Monitor watches a set of root directories and reports changed paths
// through a callback, one call per OS event.
type Monitor struct {
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
	onChange func(paths []string)
	done     chan struct{}
}

// New starts watching roots (recursively, one fsnotify watch per
// directory found under each root) and returns a Monitor whose Close stops
// it. onChange is invoked from an internal goroutine once per event, with
// a one-element slice holding that event's path.
func New(roots []string, log zerolog.Logger, onChange func(paths []string)) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := addRecursive(w, root); err != nil {
			w.Close()
			return nil, err
		}
	}
	m := &Monitor{watcher: w, log: log, onChange: onChange, done: make(chan struct{})}
	go m.run()
	return m, nil
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (m *Monitor) run() {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("fs event")
			m.onChange([]string{ev.Name})
			if ev.Op&fsnotify.Create != 0 {
				if err := m.watcher.Add(ev.Name); err == nil {
					m.log.Debug().Str("path", ev.Name).Msg("watching new directory")
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("fs watch error")
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (m *Monitor) Close() error {
	err := m.watcher.Close()
	<-m.done
	return err
}
