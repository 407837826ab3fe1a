package quell

import (
	"context"
	"errors"
	"sync/atomic"
)

// Stopped is the terminal outcome of a resolved [ShutdownSignal]. It is not a fault: it exists to
// bubble "abandon the remaining work" up through caller error chains.
//
//	select {
//	case <-sig.Done():
//		return quell.Stopped
//	case item := <-work:
//		...
//	}
var Stopped = errors.New("task was stopped")

// ShutdownSignal resolves when its group broadcasts a stop, or when the group fully drains -
// whichever comes first. Each signal is subscribed at construction time and holds its own place in
// the group's listener registry; many tasks may wait on their own signals concurrently.
//
// A signal created from an already-drained group is born resolved. A signal created after a
// [TaskGroup.Stop] call has returned does not observe that stop (broadcasts have no memory); see
// the package documentation.
//
// Once resolved, a signal stays resolved: Done stays closed, Stopped keeps returning true, and
// Wait keeps returning [Stopped], without re-subscribing.
type ShutdownSignal struct {
	shared *sharedState
	ch     <-chan struct{}

	// token is this signal's slot in the listener registry; owning an index rather than the
	// registry entry itself means teardown order can't go wrong.
	token      uint64
	subscribed atomic.Bool
}

func newShutdownSignal(shared *sharedState) *ShutdownSignal {
	token, ch := shared.subscribe()
	s := &ShutdownSignal{shared: shared, ch: ch, token: token}
	s.subscribed.Store(ch != alwaysClosed)
	return s
}

// Done returns a channel that is closed once the signal has resolved. The channel is fixed for
// the signal's lifetime, so it's cheap to select over in a loop.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.ch
}

// Stopped reports whether the signal has resolved.
func (s *ShutdownSignal) Stopped() bool {
	return s.shared.drained.Load() || isClosed(s.ch)
}

// Wait blocks until the signal resolves, then returns [Stopped]. It returns ctx.Err() instead if
// the context is canceled first; a context that is already canceled always wins.
func (s *ShutdownSignal) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ch:
			return Stopped
		}
	}
}

// Close abandons the subscription: a signal that has been closed before resolving will never
// resolve from a stop broadcast. Closing an already-resolved or already-closed signal does
// nothing. Close is safe to call concurrently with Stop on the group.
func (s *ShutdownSignal) Close() {
	if !s.subscribed.CompareAndSwap(true, false) {
		return
	}
	s.shared.unsubscribe(s.token)
}
