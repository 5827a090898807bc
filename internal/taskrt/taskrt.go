// Package taskrt supplies the background executor contract used by
// internal/soundman for buffer and stream decoding. This is the one
// component spec.md lists (§5, component 12) that the teacher has no
// analogue for at all — cbegin-mmlfm-go decodes everything inline on
// the audio callback. Grounded instead on
// original_source/second-music-system/src/runtime.rs and its fg.rs/
// switchyard.rs backends: a priority-tagged spawn contract with a
// synchronous foreground implementation (for tests and offline
// rendering) and a pooled implementation for real background loading.
package taskrt

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// TaskType classifies a background task's priority. Lower-priority
// loads (BufferLoad) should not starve higher-priority ones
// (StreamDecode) when the runtime is saturated.
type TaskType int

const (
	BufferLoad TaskType = iota
	StreamLoad
	StreamDecode
)

// Runtime accepts a task tagged with a priority class and runs it to
// completion on some thread, without blocking the caller.
type Runtime interface {
	Spawn(kind TaskType, task func())
}

// Foreground runs every task synchronously on the calling goroutine.
// Used for tests and for offline/deterministic rendering, mirroring
// ForegroundTaskRuntime's busy-polling executor (reproduced in Go as
// a plain synchronous call, since Go has no bare Future to poll).
type Foreground struct{}

func (Foreground) Spawn(_ TaskType, task func()) { task() }

// Pool runs tasks on a bounded set of goroutines, supervised by an
// errgroup so the engine can wait for outstanding loads to drain (in
// tests, or at shutdown) and capped by a weighted semaphore so a
// soundtrack swap that triggers hundreds of loads at once doesn't
// spawn hundreds of concurrent decoders. kind is recorded for callers
// that want to reason about load composition, but Go's semaphore
// offers no priority-preemption, so all three task types share one
// FIFO-ish queue for the semaphore's waiters; this is a deliberate
// simplification over the original's three-lane switchyard scheduler
// (see DESIGN.md).
type Pool struct {
	sem   *semaphore.Weighted
	group *errgroup.Group
	ctx   context.Context
}

// NewPool creates a Pool allowing up to maxConcurrent tasks to run at
// once.
func NewPool(maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	group, ctx := errgroup.WithContext(context.Background())
	return &Pool{
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		group: group,
		ctx:   ctx,
	}
}

func (p *Pool) Spawn(kind TaskType, task func()) {
	_ = kind
	p.group.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// Pool is shutting down; drop the task the same way the
			// original discards a background load whose result will
			// never be collected.
			return nil
		}
		defer p.sem.Release(1)
		task()
		return nil
	})
}

// Wait blocks until every spawned task has completed. Tests use this
// to make background loading deterministic; the live engine never
// calls it (background loads are polled for readiness instead).
func (p *Pool) Wait() error {
	return p.group.Wait()
}
