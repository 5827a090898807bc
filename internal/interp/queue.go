package interp

import (
	"container/heap"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
)

// QueuedSound is a Sound that has been scheduled to start playing at
// a future sample frame. Grounded on engine.rs's QueuedSound; the
// original orders its BinaryHeap (a max-heap) by a reversed Ord to
// get min-heap-by-When behavior. container/heap is already a
// min-heap, so the Less below orders directly by When with no
// reversal needed.
type QueuedSound struct {
	When    uint64
	Who     PlayingSoundID
	Sound   *soundtrack.Sound
	FadeIn  posfloat.PosFloat
	Length  *posfloat.PosFloat
	FadeOut posfloat.PosFloat
}

type soundHeap []*QueuedSound

func (h soundHeap) Len() int            { return len(h) }
func (h soundHeap) Less(i, j int) bool  { return h[i].When < h[j].When }
func (h soundHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *soundHeap) Push(x interface{}) { *h = append(*h, x.(*QueuedSound)) }
func (h *soundHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// SoundQueue is a priority queue of QueuedSound ordered by When,
// soonest first.
type SoundQueue struct {
	items soundHeap
}

// Push schedules qs.
func (q *SoundQueue) Push(qs *QueuedSound) {
	heap.Push(&q.items, qs)
}

// Peek returns the soonest-scheduled sound without removing it, or
// ok=false if the queue is empty.
func (q *SoundQueue) Peek() (qs *QueuedSound, ok bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Pop removes and returns the soonest-scheduled sound. Panics if the
// queue is empty; callers must check Peek or Len first.
func (q *SoundQueue) Pop() *QueuedSound {
	return heap.Pop(&q.items).(*QueuedSound)
}

// Len reports how many sounds are currently queued.
func (q *SoundQueue) Len() int { return len(q.items) }
