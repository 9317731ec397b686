// Copyright 2012 Google Inc. All Rights Reserved.
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

import "github.com/nozomi-build/forge"

// WithExplain turns on verbose per-key scheduling diagnostics (why a key
// was rebuilt rather than pruned, why a build closed a cycle), the
// evaluator's analogue of ninja's EXPLAIN()/g_explaining debug flag.
// It is off by default: at normal verbosity these events are too frequent
// to be useful outside active debugging.
func WithExplain(on bool) Option {
	return func(e *Evaluator) { e.explain = on }
}

// explainf logs a scheduling decision for k when explain mode is on.
func (e *Evaluator) explainf(k forge.Key, msg string, args ...any) {
	if !e.explain {
		return
	}
	ev := e.log.Debug().Stringer("key", k)
	if len(args) > 0 {
		ev = ev.Interface("args", args)
	}
	ev.Msg(msg)
}
