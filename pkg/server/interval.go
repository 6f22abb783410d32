package server

import (
	"sync"
	"time"
)

// Interval runs fn every d on its own goroutine and returns a stop
// function. The stop function is single-use safe: calling it more than
// once, from any goroutine, is a no-op after the first call. Hand it to
// QueuePatch as the cleanup so the ticker dies when its target leaves the
// DOM; whichever of explicit stop or the invalid-target report fires
// first wins.
func Interval(d time.Duration, fn func()) (stop func()) {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
