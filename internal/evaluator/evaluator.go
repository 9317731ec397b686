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

// Package evaluator implements the evaluator (C4): the worker pool that
// drives a set of requested keys to Done or Error by invoking their
// registered EvalFuncs, discovering dependencies dynamically, pruning
// unchanged Dirty subtrees, and detecting cycles among in-flight builds.
// Grounded on ninja's Builder (build.go): a fixed-size worker pool
// draining a ready queue, tracking in-flight edges, and reporting progress
// through a Status-shaped receiver, generalized from build edges to
// arbitrary keyed computations and from a static DAG to one discovered on
// the fly.
package evaluator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/nozomi-build/forge"
	"github.com/nozomi-build/forge/internal/cyclereporter"
	"github.com/nozomi-build/forge/internal/graphstore"
	"github.com/nozomi-build/forge/internal/progress"
)

// errEvaluationAborted is the cause attached to requested keys never
// reached because an earlier failure stopped scheduling (fail-fast).
var errEvaluationAborted = errors.New("evaluator: evaluation aborted by an earlier failure")

// KeyResultKind distinguishes the two terminal outcomes a requested key can
// have once Evaluate returns.
type KeyResultKind int

const (
	ResultValue KeyResultKind = iota
	ResultFail
)

// KeyResult is the terminal outcome of one originally-requested key.
type KeyResult struct {
	Kind  KeyResultKind
	Value forge.Value
	Err   error
}

// Evaluator is C4: it owns no graph state itself (that lives in the
// Store) but holds the configuration an Evaluate call needs — the
// registry of EvalFuncs, the worker-pool width, and where to send progress
// and cycle diagnostics.
type Evaluator struct {
	store      *graphstore.Store
	registry   *forge.Registry
	numThreads int
	progress   progress.Receiver
	cycles     *cyclereporter.Reporter
	log        zerolog.Logger
	explain    bool
}

// Option configures an Evaluator at construction time.
type Option func(*Evaluator)

// WithThreads sets the worker-pool width. The
// zero value defaults to 1.
func WithThreads(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.numThreads = n
		}
	}
}

// WithProgress wires a progress.Receiver to observe enqueue/invalidate/
// evaluate events.
func WithProgress(r progress.Receiver) Option {
	return func(e *Evaluator) { e.progress = r }
}

// WithCycleReporter wires a cyclereporter.Reporter for cycle diagnostics.
func WithCycleReporter(r *cyclereporter.Reporter) Option {
	return func(e *Evaluator) { e.cycles = r }
}

// WithLogger sets the logger used for internal diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

// New returns an Evaluator reading and writing store, invoking functions
// from registry.
func New(store *graphstore.Store, registry *forge.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:      store,
		registry:   registry,
		numThreads: 1,
		progress:   progress.NopReceiver{},
		cycles:     cyclereporter.New(zerolog.Nop()),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the mutable state of a single Evaluate call. It is never
// shared across calls: each Evaluate gets its own queue, scheduler, and
// waits-on graph, so two concurrent Evaluate calls against the same Store
// cannot see each other's in-flight bookkeeping (they still correctly
// observe each other's completed nodes through the Store itself).
type run struct {
	e         *Evaluator
	ctx       context.Context
	version   int64
	keepGoing bool

	queue *workQueue
	sched *scheduler
	waits *waitsOnGraph

	cancelled      atomic.Bool
	stopScheduling atomic.Bool

	// wg reaches zero exactly when every activated key has reached a
	// terminal state (quiescence), at which point the queue is closed and
	// the worker pool drains.
	wg sync.WaitGroup

	mu         sync.Mutex
	firstError error
}

// Evaluate drives every key in keys (and everything they transitively
// need) to Done or Error, then returns the terminal result for each
// originally-requested key. With keepGoing false, the first
// failure stops scheduling new work and Evaluate returns promptly once the
// in-flight workers drain; with keepGoing true, Evaluate continues until
// every requested key's dependency closure is exhausted of work.
func (e *Evaluator) Evaluate(ctx context.Context, keys []forge.Key, keepGoing bool) (map[forge.Key]KeyResult, error) {
	r := &run{
		e:         e,
		ctx:       ctx,
		version:   e.store.Version(),
		keepGoing: keepGoing,
		queue:     newWorkQueue(),
		sched:     newScheduler(),
		waits:     newWaitsOnGraph(),
	}

	var workerWG sync.WaitGroup
	for i := 0; i < e.numThreads; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			r.worker()
		}()
	}

	for _, k := range keys {
		r.enqueueRoot(k)
	}

	go func() {
		r.wg.Wait()
		r.queue.close()
	}()

	// A context cancellation should also unblock workers waiting in
	// pop(); closing the queue is the only wakeup mechanism pop()
	// understands, so watch ctx alongside the natural quiescence path.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.cancelled.Store(true)
			r.queue.close()
		case <-done:
		}
	}()

	workerWG.Wait()
	close(done)

	results := make(map[forge.Key]KeyResult, len(keys))
	for _, k := range keys {
		snap := e.store.Get(k)
		switch snap.State {
		case graphstore.Done:
			results[k] = KeyResult{Kind: ResultValue, Value: snap.Value}
		case graphstore.Error:
			results[k] = KeyResult{Kind: ResultFail, Err: snap.Err}
		default:
			// Cancelled, or fail-fast stopped scheduling before this key
			// was ever reached.
			cause := ctx.Err()
			if cause == nil {
				cause = errEvaluationAborted
			}
			results[k] = KeyResult{Kind: ResultFail, Err: &forge.NodeError{Kind: forge.KindNode, Key: k, Cause: cause}}
		}
	}

	r.mu.Lock()
	err := r.firstError
	r.mu.Unlock()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return results, err
}

// enqueueRoot activates and enqueues a top-level requested key. Keys
// already Done or Error need no work: Evaluate reads their terminal state
// straight out of the store once every activated key has drained.
func (r *run) enqueueRoot(k forge.Key) {
	switch r.e.store.Get(k).State {
	case graphstore.Done, graphstore.Error:
		return
	}
	if !r.sched.activate(k) {
		return
	}
	r.wg.Add(1)
	if !r.sched.markInflight(k) {
		return
	}
	r.e.progress.Enqueueing(k)
	r.queue.push(k)
}

// activateDep is like enqueueRoot but used for keys discovered as
// dependencies mid-evaluation rather than originally requested.
func (r *run) activateDep(k forge.Key) {
	r.enqueueRoot(k)
}

func (r *run) worker() {
	for {
		k, ok := r.queue.pop()
		if !ok {
			return
		}
		r.process(k)
	}
}

// process runs one (re)invocation of k's EvalFunc, or revalidates it via
// change-pruning, and handles the resulting trichotomy.
func (r *run) process(k forge.Key) {
	if !r.sched.isActive(k) {
		// k already reached a terminal state through some other path (a
		// cycle failure finishes every participant together) and this is
		// a stale wakeup from a wait registration that predated that;
		// wg was already accounted for when that path finished k.
		return
	}
	if r.stopScheduling.Load() || r.cancelled.Load() {
		r.finishBlocked(k)
		return
	}

	// Only the first time this run reaches k does it call BeginBuild: a
	// retry after OutcomeMissing finds the node already Building, owned
	// by this same run, and must go straight to invoking the function
	// again rather than treating its own prior attempt as a conflict.
	if r.sched.markBegun(k) {
		prior, err := r.e.store.BeginBuild(k)
		if err != nil {
			// Some other Evaluate call already owns this key. Our run
			// cannot make progress on it; drop it and let the final
			// result read whatever terminal state that other call
			// eventually leaves behind.
			r.finishBlocked(k)
			return
		}
		// A Dirty node that last ended in Error (Err still set) has no value
		// to restore, so it is never pruned.
		if prior.State == graphstore.Dirty && len(prior.Deps) > 0 && prior.Err == nil {
			if r.revalidate(k, prior) {
				return
			}
		}
	}

	fn, ok := r.e.registry.Lookup(k.Family)
	if !ok {
		r.fail(k, &forge.EngineError{Msg: "no EvalFunc registered for family", Key: k})
		return
	}

	env := newTaskEnv(r, r.e.store)
	result := fn(r.ctx, k, env)

	switch result.Outcome {
	case forge.OutcomeValue:
		r.complete(k, result.Value, env)
	case forge.OutcomeFail:
		cause := result.Err
		if env.anyError {
			cause = &forge.NodeError{Kind: forge.KindNode, Key: k, Cause: result.Err, RootCauses: env.pending()}
		}
		r.fail(k, cause)
	case forge.OutcomeMissing:
		r.deferForDeps(k, env)
	default:
		r.fail(k, &forge.EngineError{Msg: "EvalFunc returned an unrecognized outcome", Key: k})
	}
}

// revalidate implements the change-pruning fast path: if every
// dep recorded at k's last completion is still Done with an unchanged
// fingerprint, k is restored to Done without invoking its EvalFunc. It
// returns true if it resolved k by pruning. If any dep is not Done yet, or
// its fingerprint changed, it returns false and the caller falls through
// to a real invocation; it does not wait for a not-yet-Done dep.
func (r *run) revalidate(k forge.Key, prior graphstore.Snapshot) bool {
	for _, d := range prior.Deps {
		snap := r.e.store.Get(d)
		if snap.State != graphstore.Done {
			r.e.explainf(k, "dep not yet done, invoking", d)
			return false
		}
		if forge.Fingerprint(snap.Value) != prior.Sigs[d] {
			r.e.explainf(k, "dep changed, invoking", d)
			return false
		}
	}
	r.e.explainf(k, "all deps unchanged, pruning")
	r.e.store.Complete(k, prior.Value, prior.Deps, prior.Sigs, r.version)
	r.e.progress.Evaluated(k, prior.Value, progress.ReusedClean)
	r.resolveAndFinish(k)
	return true
}

func (r *run) complete(k forge.Key, v forge.Value, env *taskEnv) {
	sigs := make(map[forge.Key]string, len(env.touched))
	for _, d := range env.touched {
		sigs[d] = forge.Fingerprint(r.e.store.Get(d).Value)
	}
	r.e.store.Complete(k, v, env.touched, sigs, r.version)
	r.waits.clear(k)
	r.e.progress.Evaluated(k, v, progress.BuiltFresh)
	r.resolveAndFinish(k)
}

func (r *run) fail(k forge.Key, cause error) {
	nerr, ok := cause.(*forge.NodeError)
	if !ok {
		nerr = &forge.NodeError{Kind: forge.KindNode, Key: k, Cause: cause}
	}
	r.e.store.Fail(k, nerr)
	r.waits.clear(k)
	r.e.progress.Evaluated(k, forge.Value{}, progress.Failed)

	r.mu.Lock()
	if r.firstError == nil {
		r.firstError = nerr
	}
	r.mu.Unlock()

	if !r.keepGoing {
		r.stopScheduling.Store(true)
	}
	r.resolveAndFinish(k)
}

// failCycle fails every participant in a detected cycle with the shared
// CycleInfo, not just the key that discovered it: a cycle is a property of
// the whole waits-on relation connecting them, and every key caught in it
// is equally unable to ever make progress. All of the store mutations
// happen first, then the scheduler bookkeeping runs as one atomic
// finishGroup pass so a sibling's resolveAndFinish can never race a
// spurious re-invocation of another sibling still partway through this
// same call.
func (r *run) failCycle(cycle []forge.Key) {
	failed := make([]forge.Key, 0, len(cycle))
	for _, p := range cycle {
		if snap := r.e.store.Get(p); snap.State == graphstore.Done || snap.State == graphstore.Error {
			continue
		}
		nerr := &forge.NodeError{Kind: forge.KindCycle, Key: p, CycleInfo: cycle}
		r.e.store.Fail(p, nerr)
		r.waits.clear(p)
		r.e.progress.Evaluated(p, forge.Value{}, progress.Failed)

		r.mu.Lock()
		if r.firstError == nil {
			r.firstError = nerr
		}
		r.mu.Unlock()

		failed = append(failed, p)
	}
	if len(failed) == 0 {
		return
	}

	if !r.keepGoing {
		r.stopScheduling.Store(true)
	}

	toPush := r.sched.finishGroup(failed)
	for range failed {
		r.wg.Done()
	}
	for _, ws := range toPush {
		for _, w := range ws {
			r.queue.push(w)
		}
	}
}

// deferForDeps handles an OutcomeMissing result: it registers k as blocked
// on every key it touched this invocation that is not yet Done, checks for
// a cycle among in-flight waits, and ensures each of those deps either is
// already being worked or gets enqueued now.
func (r *run) deferForDeps(k forge.Key, env *taskEnv) {
	pending := env.pending()
	if len(pending) == 0 {
		// The function touched nothing new and still isn't ready; there is
		// no new work to wait on, so re-enqueue it directly rather than
		// leaving it stranded with no wakeup source.
		r.sched.clearInflight(k)
		if r.sched.markInflight(k) {
			r.queue.push(k)
		}
		return
	}

	if cycle, ok := r.waits.tryAddEdges(k, pending); !ok {
		r.e.cycles.Report(k, cycle)
		r.failCycle(cycle)
		return
	}

	r.sched.clearInflight(k)
	resolvedNow := r.sched.registerWait(k, pending, func(d forge.Key) bool {
		return r.e.store.Get(d).State == graphstore.Done
	})
	if resolvedNow {
		// At least one dep finished between env.pending()'s snapshot and
		// registerWait; don't leave k waiting on a wakeup that already
		// fired.
		if r.sched.markInflight(k) {
			r.queue.push(k)
		}
	}

	for _, d := range pending {
		switch r.e.store.Get(d).State {
		case graphstore.Done, graphstore.Error:
			r.scheduleResolve(d)
		case graphstore.Absent, graphstore.Dirty:
			r.activateDep(d)
		default:
			// Building: whoever owns that build will resolve our wait.
		}
	}
}

// scheduleResolve pushes every key waiting on dep back onto the queue.
func (r *run) scheduleResolve(dep forge.Key) {
	for _, w := range r.sched.resolve(dep) {
		r.queue.push(w)
	}
}

// resolveAndFinish is called once k reaches a terminal state: it wakes
// anything waiting on k and, if that was the last active key, the
// background watcher in Evaluate will observe wg reach zero and close the
// queue.
func (r *run) resolveAndFinish(k forge.Key) {
	r.scheduleResolve(k)
	r.sched.clearInflight(k)
	r.sched.finish(k)
	r.wg.Done()
}

// finishBlocked is used when a key is popped after cancellation or
// fail-fast has already been triggered: it must still be accounted for in
// wg so quiescence detection isn't thrown off, but no further work is
// attempted.
func (r *run) finishBlocked(k forge.Key) {
	r.sched.clearInflight(k)
	r.sched.finish(k)
	r.wg.Done()
}
