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

package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nozomi-build/forge"
)

// LogReceiver is a Receiver that emits structured log events and tracks a
// rolling completion rate, generalizing ninja's StatusPrinter
// (status.go) from build edges to arbitrary evaluated keys.
type LogReceiver struct {
	log zerolog.Logger

	enqueued  atomic.Int64
	evaluated atomic.Int64
	failed    atomic.Int64

	rate slidingRate
}

// NewLogReceiver returns a LogReceiver that logs through log, tracking a
// sliding rate over the last window samples (ninja defaults this to
// the build's parallelism).
func NewLogReceiver(log zerolog.Logger, window int) *LogReceiver {
	if window < 1 {
		window = 1
	}
	return &LogReceiver{log: log, rate: slidingRate{n: window}}
}

func (l *LogReceiver) Invalidated(k forge.Key, state string) {
	l.log.Debug().Stringer("key", k).Str("state", state).Msg("invalidated")
}

func (l *LogReceiver) Enqueueing(k forge.Key) {
	l.enqueued.Add(1)
	l.log.Debug().Stringer("key", k).Msg("enqueued")
}

func (l *LogReceiver) Evaluated(k forge.Key, v forge.Value, outcome Outcome) {
	l.evaluated.Add(1)
	now := time.Now()
	rate := l.rate.update(now)
	ev := l.log.Info()
	if outcome == Failed {
		l.failed.Add(1)
		ev = l.log.Error()
	}
	ev.Stringer("key", k).
		Str("outcome", outcome.String()).
		Int64("evaluated", l.evaluated.Load()).
		Float64("rate_per_sec", rate).
		Msg("evaluated")
}

// Counts returns the running totals of enqueued, evaluated, and failed
// keys observed so far.
func (l *LogReceiver) Counts() (enqueued, evaluated, failed int64) {
	return l.enqueued.Load(), l.evaluated.Load(), l.failed.Load()
}

// slidingRate tracks a rate of events per second over the last n samples,
// the same windowed-average idea as ninja's slidingRateInfo.
type slidingRate struct {
	mu    sync.Mutex
	n     int
	times []time.Time
}

func (s *slidingRate) update(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = append(s.times, now)
	if len(s.times) > s.n {
		s.times = s.times[len(s.times)-s.n:]
	}
	if len(s.times) < 2 {
		return 0
	}
	elapsed := s.times[len(s.times)-1].Sub(s.times[0]).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(len(s.times)-1) / elapsed
}
