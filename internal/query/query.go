// Package query implements a one-shot single-producer-single-consumer
// future: one thread asks a question only another thread can answer,
// and only the asking thread ever reads the answer. Grounded on
// src/query.rs's Responder/Response pair, with the futures-crate
// AtomicWaker replaced by a plain done channel, matching the teacher's
// player.go done-channel idiom.
package query

import (
	"sync"
	"sync/atomic"
)

// Future is the read side of a query: the thing a caller holds onto
// and eventually polls or blocks on for an answer.
type Future[T any] struct {
	ready atomic.Bool
	done  chan struct{}

	mu    sync.Mutex
	value T
	taken bool
}

// Responder is the write side of a query: the thing the answering
// side holds and calls exactly once.
type Responder[T any] struct {
	f *Future[T]
}

// New starts a query, returning the responder the answering side
// holds and the future the asking side holds.
func New[T any]() (*Responder[T], *Future[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return &Responder[T]{f: f}, f
}

// Respond answers the query. Calling it more than once is a logic
// error; src/query.rs's Responder can only be consumed once because
// Rust's ownership makes a second call impossible to even write, so
// this panics instead to catch the same mistake at runtime.
func (r *Responder[T]) Respond(value T) {
	r.f.mu.Lock()
	if r.f.ready.Load() {
		r.f.mu.Unlock()
		panic("query: Respond called more than once")
	}
	r.f.value = value
	r.f.mu.Unlock()
	r.f.ready.Store(true)
	close(r.f.done)
}

// Poll reports whether the response has arrived. If true, Get and
// Take will succeed rather than report not-ready.
func (f *Future[T]) Poll() bool {
	return f.ready.Load()
}

// Done returns a channel closed once the response has arrived, for
// select-based waiting alongside other events.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get returns the response without consuming it, or ok=false if it
// hasn't arrived yet. Calling it after Take is a logic error (the
// value is gone) and panics, matching try_get's panic-on-double-take
// behavior.
func (f *Future[T]) Get() (value T, ok bool) {
	if !f.ready.Load() {
		return value, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken {
		panic("query: Get called after Take")
	}
	return f.value, true
}

// Take consumes and returns the response, or ok=false if it hasn't
// arrived yet. Calling it twice is a logic error and panics.
func (f *Future[T]) Take() (value T, ok bool) {
	if !f.ready.Load() {
		return value, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken {
		panic("query: Take called more than once")
	}
	f.taken = true
	v := f.value
	var zero T
	f.value = zero
	return v, true
}

// Wait blocks until the response arrives, then consumes and returns
// it. It is the blocking analogue of Rust's Future::poll/await.
func (f *Future[T]) Wait() T {
	<-f.done
	v, _ := f.Take()
	return v
}
