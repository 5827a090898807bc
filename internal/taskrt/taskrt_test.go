package taskrt

import (
	"sync/atomic"
	"testing"
)

func TestForegroundRunsSynchronously(t *testing.T) {
	var ran bool
	Foreground{}.Spawn(BufferLoad, func() { ran = true })
	if !ran {
		t.Fatal("expected the task to have run by the time Spawn returns")
	}
}

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	var count atomic.Int32
	const n = 20
	for i := 0; i < n; i++ {
		p.Spawn(StreamDecode, func() { count.Add(1) })
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if count.Load() != n {
		t.Fatalf("got %d completions, want %d", count.Load(), n)
	}
}

func TestPoolLimitsConcurrency(t *testing.T) {
	p := NewPool(2)
	var inFlight, maxSeen atomic.Int32
	for i := 0; i < 10; i++ {
		p.Spawn(BufferLoad, func() {
			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			inFlight.Add(-1)
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if maxSeen.Load() > 2 {
		t.Fatalf("observed %d concurrent tasks, want <= 2", maxSeen.Load())
	}
}
