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

// Package cyclereporter implements C6: formatting detected dependency
// cycles using per-family heuristics, deduplicated within a build.
package cyclereporter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nozomi-build/forge"
)

// Formatter renders a cycle's participants for a specific key family. The
// default formatter just joins String() forms; families with a more
// meaningful cycle rendering (e.g. "A depends on B depends on A via rule
// X") register their own.
type Formatter func(requested forge.Key, cycle []forge.Key) string

// Reporter accepts detected cycles, picks a per-family formatter, and
// emits the diagnostic exactly once per distinct cycle for the Reporter's
// lifetime. The set of reported cycles is never cleared, so a cycle already
// reported in one build is not reported again in a later build.
type Reporter struct {
	log zerolog.Logger

	mu         sync.Mutex
	formatters map[forge.Family]Formatter
	reported   map[string]struct{}
}

// New returns a Reporter that writes diagnostics through log.
func New(log zerolog.Logger) *Reporter {
	return &Reporter{
		log:        log,
		formatters: map[forge.Family]Formatter{},
		reported:   map[string]struct{}{},
	}
}

// RegisterFormatter wires a family-specific cycle formatter.
func (r *Reporter) RegisterFormatter(f forge.Family, fn Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[f] = fn
}

func defaultFormat(requested forge.Key, cycle []forge.Key) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, k := range cycle {
		parts = append(parts, k.String())
	}
	parts = append(parts, cycle[0].String())
	return fmt.Sprintf("dependency cycle requested via %s: %s", requested, strings.Join(parts, " -> "))
}

// Report formats and logs cycle (already canonicalized by
// forge.CanonicalCycle) once; subsequent reports of the same canonical
// cycle within this Reporter's lifetime are suppressed.
func (r *Reporter) Report(requested forge.Key, cycle []forge.Key) {
	if len(cycle) == 0 {
		return
	}
	var dedupeKey string
	for _, k := range cycle {
		dedupeKey += "|" + k.String()
	}

	r.mu.Lock()
	if _, ok := r.reported[dedupeKey]; ok {
		r.mu.Unlock()
		return
	}
	r.reported[dedupeKey] = struct{}{}
	fn, ok := r.formatters[cycle[0].Family]
	r.mu.Unlock()

	if !ok {
		fn = defaultFormat
	}
	r.log.Error().Msg(fn(requested, cycle))
}
