package services

import (
	"sync"
	"time"
)

// Scheduler runs periodic tasks for the draw session.
type Scheduler interface {
	// Every calls fn every interval until cancel is called. cancel may be
	// called more than once, including from inside fn.
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler runs each task on its own goroutine driven by a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
