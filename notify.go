package quell

import (
	"os"
	ossignal "os/signal" // rename so the word 'signal' stays free for this package's own use
)

// NotifyStop forwards the given OS signals into g.Stop, so that e.g. SIGTERM broadcasts a stop to
// every subscribed [ShutdownSignal]. Each delivered OS signal triggers one Stop call; since Stop
// is idempotent and has no memory, repeated deliveries are harmless.
//
// The returned function unregisters the forwarding and releases its goroutine; call it once
// shutdown is underway (or defer it).
func NotifyStop(g *TaskGroup, signals ...os.Signal) (cancel func()) {
	ch := make(chan os.Signal, 1)
	ossignal.Notify(ch, signals...)

	go func() {
		for {
			_, ok := <-ch
			if !ok {
				return
			}
			g.Stop()
		}
	}()

	return func() {
		ossignal.Stop(ch)
		close(ch)
	}
}
