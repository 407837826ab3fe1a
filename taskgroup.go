package quell

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// sharedState is the single piece of state behind a TaskGroup. Every handle, guard, signal, and
// barrier for one group points at the same sharedState; it lives as long as the longest of them.
type sharedState struct {
	// live counts tasks that have been added but not yet released.
	live atomic.Int64
	// drained flips false->true exactly once, in the release that observes the pre-decrement
	// count equal to 1. It never reverts.
	drained atomic.Bool

	mu        sync.Mutex
	drainedCh chan struct{} // closed when drained flips
	listeners map[uint64]chan struct{}
	nextToken uint64
	tasks     map[string]uint
}

func newSharedState() *sharedState {
	return &sharedState{
		drainedCh: make(chan struct{}),
		listeners: make(map[uint64]chan struct{}),
		tasks:     make(map[string]uint),
	}
}

// release is the single decrement path. The value returned by the atomic add is the only input to
// the drained decision, so the 1->0 edge is observed by exactly one caller even under concurrent
// releases - no CAS loop required.
func (s *sharedState) release(name string) {
	s.mu.Lock()
	if c := s.tasks[name]; c <= 1 {
		delete(s.tasks, name)
	} else {
		s.tasks[name] = c - 1
	}
	s.mu.Unlock()

	prev := s.live.Add(-1) + 1
	if prev != 1 {
		return
	}

	// This release took the count to zero. The CAS guards the one-way flip in case tasks were
	// added to an already-drained group and finished again.
	if s.drained.CompareAndSwap(false, true) {
		s.mu.Lock()
		close(s.drainedCh)
		listeners := s.listeners
		s.listeners = nil
		s.mu.Unlock()

		// Draining resolves every outstanding shutdown signal too; there is nothing left for
		// them to coordinate.
		for _, ch := range listeners {
			close(ch)
		}
	}
}

// stop wakes every currently-subscribed shutdown signal, exactly once each, and records nothing.
// Subscriptions made after stop returns are unaffected.
func (s *sharedState) stop() {
	if s.drained.Load() {
		return
	}

	s.mu.Lock()
	listeners := s.listeners
	if listeners != nil {
		s.listeners = make(map[uint64]chan struct{})
	}
	s.mu.Unlock()

	for _, ch := range listeners {
		close(ch)
	}
}

// subscribe registers one listener for the next stop broadcast (or the drain edge, whichever
// comes first) and returns an unsubscribe token for it. If the group has already drained, the
// returned channel is closed and the token is dead.
func (s *sharedState) subscribe() (uint64, <-chan struct{}) {
	if s.drained.Load() {
		return 0, alwaysClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// re-check under the lock; the final release may have won the race since the load above
	if s.drained.Load() {
		return 0, alwaysClosed
	}

	token := s.nextToken
	s.nextToken += 1
	ch := make(chan struct{})
	s.listeners[token] = ch
	return token, ch
}

func (s *sharedState) unsubscribe(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, token)
}

// TaskGroup coordinates shutting down a set of concurrently running tasks:
//
//  1. Tasks are registered one at a time, named, with [TaskGroup.Add] or [TaskGroup.Spawn]
//  2. [TaskGroup.Stop] broadcasts "begin shutting down" to subscribed [ShutdownSignal]s
//  3. [TaskGroup.DrainBarrier] reports when every registered task has finished
//  4. The set of unfinished tasks can be fetched with [TaskGroup.Tasks]
//
// A TaskGroup is a cheap handle; share the pointer freely. All copies observe the same state, and
// any of them may call Stop concurrently without double effects.
//
// A TaskGroup drains once: after the last outstanding task releases its guard, the group stays
// drained forever. Signals and barriers obtained from a drained group resolve immediately.
type TaskGroup struct {
	shared *sharedState
}

// New creates an empty TaskGroup: no live tasks, not yet drained.
func New() *TaskGroup {
	return &TaskGroup{shared: newSharedState()}
}

// Stop asks every task currently holding a subscribed [ShutdownSignal] to shut down. It does not
// wait, does not touch task counters, and sets no standing state: a signal subscribed after Stop
// returns will not observe this call. Stop on a drained group is a no-op.
func (g *TaskGroup) Stop() {
	g.shared.stop()
}

// ShutdownSignal subscribes a new [ShutdownSignal] to this group. If the group has already
// drained, the signal is born resolved.
func (g *TaskGroup) ShutdownSignal() *ShutdownSignal {
	return newShutdownSignal(g.shared)
}

// DrainBarrier returns a [DrainBarrier] that resolves when this group has fully drained. Any
// number of barriers may wait concurrently.
func (g *TaskGroup) DrainBarrier() *DrainBarrier {
	return &DrainBarrier{shared: g.shared}
}

// Add registers one task with the name and returns its [StopGuard]. The group will not drain
// until the guard is released; release it on every exit path:
//
//	guard := g.Add("tick-driver")
//	defer guard.Release()
//
// Add may be called multiple times with the same name, in which case multiple instances of that
// task are counted. Prefer [TaskGroup.Spawn], which wires the guard up for you.
func (g *TaskGroup) Add(name string) *StopGuard {
	g.shared.mu.Lock()
	g.shared.tasks[name] += 1
	g.shared.mu.Unlock()

	g.shared.live.Add(1)
	return &StopGuard{shared: g.shared, name: name}
}

// Live returns the number of tasks added but not yet released.
func (g *TaskGroup) Live() int {
	return int(g.shared.live.Load())
}

// Drained returns whether the group has fully drained, i.e. whether a [DrainBarrier] would
// resolve immediately.
func (g *TaskGroup) Drained() bool {
	return g.shared.drained.Load()
}

// TaskInfo describes a set of unfinished tasks sharing a name, as returned by [TaskGroup.Tasks].
type TaskInfo struct {
	Name string `json:"name"`
	// Count is the number of unfinished tasks named Name; never zero when returned by
	// [TaskGroup.Tasks].
	Count uint `json:"count"`
}

// Tasks returns a snapshot of the unfinished tasks, sorted by name.
//
// The recommended use of this method is runtime diagnostics - like having better information about
// exactly which tasks are still running, when waiting for a drain that is taking too long.
func (g *TaskGroup) Tasks() []TaskInfo {
	g.shared.mu.Lock()
	var ts []TaskInfo
	for name, count := range g.shared.tasks {
		ts = append(ts, TaskInfo{Name: name, Count: count})
	}
	g.shared.mu.Unlock()

	slices.SortFunc(ts, func(t1, t2 TaskInfo) bool { return t1.Name < t2.Name })
	return ts
}

// StopGuard owns exactly one unit of its group's live-task count, for the duration of one task's
// execution. Releasing it is the only way the count decreases.
type StopGuard struct {
	shared   *sharedState
	name     string
	released atomic.Bool
}

// Release marks the guarded task as finished. The first call decrements the group's live count
// and, if this task was the last one outstanding, drains the group; further calls do nothing.
//
// Release must run on every exit path of the task - defer it.
func (g *StopGuard) Release() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.shared.release(g.name)
}

// DrainBarrier resolves once, when every task registered with its group has finished. While any
// task is outstanding - and before the first task is ever registered - it stays pending.
type DrainBarrier struct {
	shared *sharedState
}

// Done returns a channel that is closed once the group has fully drained.
func (b *DrainBarrier) Done() <-chan struct{} {
	return b.shared.drainedCh
}

// Drained returns whether the barrier has resolved, i.e. if waiting would immediately complete.
func (b *DrainBarrier) Drained() bool {
	return b.shared.drained.Load()
}

// Wait blocks until the group drains, returning early with ctx.Err() if the context is canceled.
//
// If the context is already canceled when Wait is called, this method will always return the
// context's error.
func (b *DrainBarrier) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.shared.drainedCh:
			return nil
		}
	}
}
