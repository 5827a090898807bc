package soundman

import (
	"sync"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
)

// fakeReader is a minimal in-memory sound.SoundReader[float32] for
// tests, with clonability configurable so both the BufferMan and
// StreamMan paths can be exercised.
type fakeReader struct {
	data     []float32
	cursor   int
	cloneOK  bool
}

func (r *fakeReader) Read(buf []float32) int {
	n := copy(buf, r.data[r.cursor:])
	r.cursor += n
	return n
}
func (r *fakeReader) Seek(frame uint64) (uint64, bool) {
	if int(frame) > len(r.data) {
		return 0, false
	}
	r.cursor = int(frame)
	return frame, true
}
func (r *fakeReader) SkipCoarse(count uint64, _ []float32) uint64 {
	max := uint64(len(r.data) - r.cursor)
	if count > max {
		count = max
	}
	r.cursor += int(count)
	return count
}
func (r *fakeReader) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](r, count, scratch)
}
func (r *fakeReader) CanBeCloned() bool { return r.cloneOK }
func (r *fakeReader) AttemptClone() sound.SoundReader[float32] {
	if !r.cloneOK {
		panic("fakeReader: not cloneable")
	}
	cp := *r
	return &cp
}
func (r *fakeReader) EstimateLen() (uint64, bool) { return uint64(len(r.data)), true }

// fakeDelegate serves canned streams by path and counts opens, so
// tests can assert on load deduplication.
type fakeDelegate struct {
	mu       sync.Mutex
	files    map[string][]float32
	cloneOK  bool
	opens    int
	warnings []string
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{files: make(map[string][]float32)}
}

func (d *fakeDelegate) OpenFile(name string) (sound.FormattedSoundStream, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[name]
	if !ok {
		return sound.Empty(), false
	}
	d.opens++
	return sound.FormattedSoundStream{
		SampleRate:    posfloat.MustNew(1000),
		SpeakerLayout: sound.Mono,
		Reader:        sound.NewF32Reader(&fakeReader{data: append([]float32(nil), data...), cloneOK: d.cloneOK}),
	}, true
}

func (d *fakeDelegate) Warning(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warnings = append(d.warnings, message)
}

func (d *fakeDelegate) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}
