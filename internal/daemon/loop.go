// Package daemon holds the process shell: the single event loop the
// registry runs on, the singleton lock, and the wiring between
// configuration, capture backend, registry and bus service.
package daemon

import "sync"

// Loop serializes all registry work onto one goroutine. Backends and
// the bus service submit closures; nothing inside the registry blocks,
// so the loop always drains.
type Loop struct {
	funcs chan func()

	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates an idle loop; Run starts draining.
func NewLoop() *Loop {
	return &Loop{
		funcs: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run drains submitted closures until Stop. Call it from exactly one
// goroutine.
func (l *Loop) Run() {
	for {
		select {
		case fn := <-l.funcs:
			fn()
		case <-l.done:
			// Drain what was already queued before stopping.
			for {
				select {
				case fn := <-l.funcs:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Submit queues a closure for execution on the loop.
func (l *Loop) Submit(fn func()) {
	select {
	case l.funcs <- fn:
	case <-l.done:
	}
}

// Call runs a closure on the loop and waits for it. Must not be called
// from the loop goroutine itself.
func (l *Loop) Call(fn func()) {
	ran := make(chan struct{})
	l.Submit(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-l.done:
	}
}

// Stop ends the loop after the queued work drains.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
