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

// Package progress implements C5: the observer interface the evaluator
// notifies on enqueue/evaluate/invalidate, generalized from ninja's
// edge-oriented Status/StatusPrinter (status.go) to arbitrary keys.
package progress

import "github.com/nozomi-build/forge"

// Outcome reports how a key's value came to be Done.
type Outcome int

const (
	BuiltFresh Outcome = iota
	ReusedClean
	Failed
)

func (o Outcome) String() string {
	switch o {
	case BuiltFresh:
		return "built"
	case ReusedClean:
		return "reused"
	case Failed:
		return "failed"
	default:
		return "outcome(?)"
	}
}

// Receiver is the observer the evaluator notifies. The evaluator calls
// these without holding any node lock; implementations must be safe for
// concurrent calls across different keys: callbacks for a single key are
// serialized, but there is no ordering guarantee across keys.
type Receiver interface {
	Invalidated(k forge.Key, state string)
	Enqueueing(k forge.Key)
	Evaluated(k forge.Key, v forge.Value, outcome Outcome)
}

// NopReceiver implements Receiver by doing nothing.
type NopReceiver struct{}

func (NopReceiver) Invalidated(forge.Key, string)            {}
func (NopReceiver) Enqueueing(forge.Key)                     {}
func (NopReceiver) Evaluated(forge.Key, forge.Value, Outcome) {}

// FanOut is a thin multiplexer composing several receivers into one,
// mirroring ninja's note that the progress receiver should stay a
// dumb multiplexer and never entangle UI concerns with the evaluator.
type FanOut struct {
	Receivers []Receiver
}

func NewFanOut(rs ...Receiver) *FanOut { return &FanOut{Receivers: rs} }

func (f *FanOut) Invalidated(k forge.Key, state string) {
	for _, r := range f.Receivers {
		r.Invalidated(k, state)
	}
}

func (f *FanOut) Enqueueing(k forge.Key) {
	for _, r := range f.Receivers {
		r.Enqueueing(k)
	}
}

func (f *FanOut) Evaluated(k forge.Key, v forge.Value, outcome Outcome) {
	for _, r := range f.Receivers {
		r.Evaluated(k, v, outcome)
	}
}
