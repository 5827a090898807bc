package adapter

import "github.com/cbegin/secondmusic-go/internal/sound"

// fixedReader is a SoundReader[float32] over a fixed in-memory slice,
// for exercising the adapter stages without a real decoder — grounded
// on chanadapter.rs's own #[cfg(test)] FixedSource helper.
type fixedReader struct {
	data     []float32
	pos      int
	cloneOK  bool
	channels int
}

func (r *fixedReader) Read(buf []float32) int {
	n := copy(buf, r.data[r.pos:])
	r.pos += n
	return n
}

func (r *fixedReader) Seek(frame uint64) (uint64, bool) {
	idx := int(frame) * r.channels
	if idx > len(r.data) {
		idx = len(r.data)
	}
	r.pos = idx
	return uint64(r.pos / r.channels), true
}

func (r *fixedReader) SkipCoarse(count uint64, scratch []float32) uint64 {
	max := len(r.data) - r.pos
	if int(count) > max {
		count = uint64(max)
	}
	r.pos += int(count)
	return count
}

func (r *fixedReader) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](r, count, scratch)
}

func (r *fixedReader) CanBeCloned() bool { return r.cloneOK }

func (r *fixedReader) AttemptClone() sound.SoundReader[float32] {
	c := *r
	return &c
}

func (r *fixedReader) EstimateLen() (uint64, bool) {
	return uint64(len(r.data)) / uint64(r.channels), true
}

func readAll(r sound.SoundReader[float32], bufSize int) []float32 {
	var out []float32
	buf := make([]float32, bufSize)
	for {
		n := r.Read(buf)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}
