package soundman

import (
	"sync"
	"weak"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/taskrt"
	"github.com/pkg/errors"
)

// bufState is a cachedSound's position in its load lifecycle, per
// buffer.rs's CachedSound enum.
type bufState int

const (
	bufLoading bufState = iota
	bufLoaded
	bufUnloaded
)

// formattedVec is a whole decoded file, kept in its native sample
// format rather than upconverted to float32, so an 8-bit sound effect
// doesn't cost 4x its file size in RAM just sitting in the cache.
type formattedVec struct {
	format        sound.SampleFormat
	sampleRate    posfloat.PosFloat
	speakerLayout sound.SpeakerLayout
	u8            []uint8
	u16           []uint16
	i8            []int8
	i16           []int16
	f32           []float32
}

// cachedSound tracks one path's whole-file cache entry. loadCount is
// the number of live Load calls outstanding; it reaching zero is what
// demotes a loaded buffer to weak-only, per spec.md §4.4's "unload
// this many" contract.
type cachedSound struct {
	state     bufState
	loadCount int
	ch        <-chan *formattedVec
	strong    *formattedVec
	weak      weak.Pointer[formattedVec]
}

// BufferMan is the sound manager's whole-file cache for sounds loaded
// with stream=false, grounded on
// original_source/second-music-system/src/engine/soundman/buffer.rs.
// Reference counting plus a weak pointer means a sound that every
// caller has Unload'd stays decoded in memory until the GC actually
// reclaims it — a replay a moment later is then free, matching the
// Rust Arc<Vec<T>>/Weak<Vec<T>> pattern via Go 1.24's weak package.
type BufferMan struct {
	mu       sync.Mutex
	delegate sound.SoundDelegate
	runtime  taskrt.Runtime
	sounds   map[string]*cachedSound
}

func NewBufferMan(delegate sound.SoundDelegate, runtime taskrt.Runtime) *BufferMan {
	return &BufferMan{
		delegate: delegate,
		runtime:  runtime,
		sounds:   make(map[string]*cachedSound),
	}
}

// Load increments path's reference count, kicking off a background
// decode the first time it's seen.
func (bm *BufferMan) Load(path string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if cs, ok := bm.sounds[path]; ok {
		cs.loadCount++
		return
	}
	ch := make(chan *formattedVec, 1)
	bm.sounds[path] = &cachedSound{state: bufLoading, loadCount: 1, ch: ch}
	delegate, runtimePath := bm.delegate, path
	bm.runtime.Spawn(taskrt.BufferLoad, func() {
		ch <- loadWholeSound(delegate, runtimePath)
	})
}

// Unload decrements path's reference count. At zero, a loaded buffer
// is demoted to a weak reference rather than dropped outright, so a
// quick reload finds it still in memory.
func (bm *BufferMan) Unload(path string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	cs, ok := bm.sounds[path]
	if !ok {
		return
	}
	cs.loadCount--
	if cs.state == bufLoaded && cs.loadCount <= 0 {
		cs.weak = weak.Make(cs.strong)
		cs.strong = nil
		cs.state = bufUnloaded
	}
}

// UnloadAll drops every cache entry unconditionally, for a soundtrack
// swap or engine shutdown. This collapses per-path refcounting rather
// than walking it down to zero one Unload at a time, a simplification
// over the original's unload_all (see DESIGN.md).
func (bm *BufferMan) UnloadAll() {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.sounds = make(map[string]*cachedSound)
}

// IsReady reports whether path's decode has finished (or never needed
// to happen, for an already-cached buffer).
func (bm *BufferMan) IsReady(path string) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	cs, ok := bm.sounds[path]
	if !ok {
		return false
	}
	bm.checkLoading(cs)
	return cs.state != bufLoading
}

// GetSound returns a fresh reader over path's cached data, reloading
// synchronously if the weak reference was already reclaimed. ok is
// false only while the initial decode is still outstanding.
func (bm *BufferMan) GetSound(path string) (sound.FormattedSoundStream, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	cs, ok := bm.sounds[path]
	if !ok {
		return sound.Empty(), false
	}
	bm.checkLoading(cs)
	switch cs.state {
	case bufLoading:
		return sound.Empty(), false
	case bufUnloaded:
		if v := cs.weak.Value(); v != nil {
			cs.strong = v
			cs.state = bufLoaded
			return streamFromVec(v), true
		}
		v := loadWholeSound(bm.delegate, path)
		cs.strong = v
		cs.weak = weak.Make(v)
		cs.state = bufLoaded
		return streamFromVec(v), true
	default: // bufLoaded
		return streamFromVec(cs.strong), true
	}
}

// checkLoading drains cs's load channel without blocking, transitioning
// bufLoading to bufLoaded or, if every caller already unloaded while
// the decode was in flight, straight to bufUnloaded.
func (bm *BufferMan) checkLoading(cs *cachedSound) {
	if cs.state != bufLoading {
		return
	}
	select {
	case v := <-cs.ch:
		cs.weak = weak.Make(v)
		if cs.loadCount > 0 {
			cs.state = bufLoaded
			cs.strong = v
		} else {
			cs.state = bufUnloaded
		}
	default:
	}
}

// loadWholeSound opens path and reads it to the end in its native
// sample format, substituting a silent empty vector on open failure
// so a missing file never blocks playback of everything else.
func loadWholeSound(delegate sound.SoundDelegate, path string) *formattedVec {
	stream, ok := delegate.OpenFile(path)
	if !ok {
		delegate.Warning(errors.Errorf("soundman: failed to open %q for buffering", path).Error())
		stream = sound.Empty()
	}
	v := &formattedVec{
		format:        stream.Reader.Format,
		sampleRate:    stream.SampleRate,
		speakerLayout: stream.SpeakerLayout,
	}
	switch v.format {
	case sound.FormatU8:
		r, _ := stream.Reader.AsU8()
		v.u8 = readWhole[uint8](r)
	case sound.FormatU16:
		r, _ := stream.Reader.AsU16()
		v.u16 = readWhole[uint16](r)
	case sound.FormatI8:
		r, _ := stream.Reader.AsI8()
		v.i8 = readWhole[int8](r)
	case sound.FormatI16:
		r, _ := stream.Reader.AsI16()
		v.i16 = readWhole[int16](r)
	case sound.FormatF32:
		r, _ := stream.Reader.AsF32()
		v.f32 = readWhole[float32](r)
	}
	return v
}

// readWhole drains r to end of stream, using EstimateLen as a
// capacity hint when the decoder can offer one.
func readWhole[T sound.Sample](r sound.SoundReader[T]) []T {
	var out []T
	if hint, ok := r.EstimateLen(); ok {
		out = make([]T, 0, hint)
	}
	buf := make([]T, 4096)
	for {
		n := r.Read(buf)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}

// streamFromVec builds a fresh, independently-positioned reader over
// v's data. Multiple simultaneous plays of the same cached sound each
// get their own cursor into the same backing slice.
func streamFromVec(v *formattedVec) sound.FormattedSoundStream {
	channels := v.speakerLayout.NumChannels()
	var reader sound.FormattedSoundReader
	switch v.format {
	case sound.FormatU8:
		reader = sound.NewU8Reader(newBufferStream(v.u8, channels))
	case sound.FormatU16:
		reader = sound.NewU16Reader(newBufferStream(v.u16, channels))
	case sound.FormatI8:
		reader = sound.NewI8Reader(newBufferStream(v.i8, channels))
	case sound.FormatI16:
		reader = sound.NewI16Reader(newBufferStream(v.i16, channels))
	case sound.FormatF32:
		reader = sound.NewF32Reader(newBufferStream(v.f32, channels))
	}
	return sound.FormattedSoundStream{
		SampleRate:    v.sampleRate,
		SpeakerLayout: v.speakerLayout,
		Reader:        reader,
	}
}

// bufferStream is a cursor into an in-memory, interleaved sample
// slice, implementing sound.SoundReader[T] for whole-file cached
// buffers. Grounded on buffer.rs's BufferStream<T>.
type bufferStream[T sound.Sample] struct {
	data     []T
	cursor   int
	channels int
}

func newBufferStream[T sound.Sample](data []T, channels int) *bufferStream[T] {
	if channels < 1 {
		channels = 1
	}
	return &bufferStream[T]{data: data, channels: channels}
}

func (b *bufferStream[T]) Read(buf []T) int {
	n := copy(buf, b.data[b.cursor:])
	b.cursor += n
	return n
}

func (b *bufferStream[T]) Seek(frame uint64) (uint64, bool) {
	idx := frame * uint64(b.channels)
	if idx > uint64(len(b.data)) {
		idx = uint64(len(b.data))
	}
	b.cursor = int(idx)
	return idx / uint64(b.channels), true
}

func (b *bufferStream[T]) SkipCoarse(count uint64, _ []T) uint64 {
	maxSkip := uint64(len(b.data) - b.cursor)
	if count > maxSkip {
		count = maxSkip
	}
	b.cursor += int(count)
	return count
}

func (b *bufferStream[T]) SkipPrecise(count uint64, scratch []T) bool {
	return sound.DefaultSkipPrecise[T](b, count, scratch)
}

func (b *bufferStream[T]) CanBeCloned() bool { return true }

func (b *bufferStream[T]) AttemptClone() sound.SoundReader[T] {
	return &bufferStream[T]{data: b.data, cursor: b.cursor, channels: b.channels}
}

func (b *bufferStream[T]) EstimateLen() (uint64, bool) {
	return uint64(len(b.data)) / uint64(b.channels), true
}
