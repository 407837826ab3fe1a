package quell

import (
	"context"
	"fmt"
	"sync"
)

// Handle observes the result of one spawned task. It is decoupled from group accounting: the
// group may drain before or after any particular handle is waited on.
type Handle struct {
	done chan struct{}
	err  error
}

// Done returns a channel that is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task's result: nil while the task is still running or if it returned nil, the
// returned error otherwise. A task that panicked reports a [*PanicError].
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes and returns its error, or returns ctx.Err() if the context
// is canceled first. A context that is already canceled always wins.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return h.err
		}
	}
}

// PanicError is the error reported by a [Handle] whose task panicked. The panic is contained to
// the task: group accounting still sees a normal release, so drains complete.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack was captured at the panic site, with the spawn site as its parent trace.
	Stack StackTrace
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Spawn runs f as a task named name, registered with g. The task's guard is released on every
// exit path - normal return, error return, or panic - so the group's drain accounting cannot
// leak. The returned [Handle] reports f's outcome.
//
// A panicking f does not crash the process; its panic value surfaces as a [*PanicError] on the
// handle, with stack traces from both the panic site and the spawn site.
func (g *TaskGroup) Spawn(name string, f func() error) *Handle {
	guard := g.Add(name)
	h := &Handle{done: make(chan struct{})}

	// capture the spawn site now; by the time a panic happens this frame is long gone
	spawnSite := GetStackTrace(nil, 1)

	go func() {
		defer close(h.done)
		defer guard.Release()
		defer func() {
			if v := recover(); v != nil {
				h.err = &PanicError{Value: v, Stack: GetStackTrace(&spawnSite, 0)}
			}
		}()
		h.err = f()
	}()

	return h
}

var defaultGroup = struct {
	once sync.Once
	g    *TaskGroup
}{}

// Default returns the process-scoped default TaskGroup, creating it on first use. It is shared by
// everything in the process that calls [Spawn]; code that needs isolation (tests, especially)
// should construct its own group with [New] instead.
func Default() *TaskGroup {
	defaultGroup.once.Do(func() {
		defaultGroup.g = New()
	})
	return defaultGroup.g
}

// Spawn runs f as a task under the default group. See [TaskGroup.Spawn].
func Spawn(name string, f func() error) *Handle {
	return Default().Spawn(name, f)
}
