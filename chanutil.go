package quell

// unexported helpers relating to channels

// alwaysClosed is handed out wherever an awaitable is born already resolved - e.g. a
// ShutdownSignal created from a drained group.
var alwaysClosed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func isClosed(c <-chan struct{}) bool {
	if c == nil {
		return false
	}

	select {
	case <-c:
		return true
	default:
		return false
	}
}
