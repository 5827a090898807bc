package adapter

import (
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/gopxl/beep"
)

// resampleQuality is the beep.Resample quality argument (0-4, higher
// is slower and cleaner); 4 matches every other example repo in the
// pack that calls beep.Resample (mp3-reproductor, golte, cliamp,
// amp, ...), which all hardcode the top quality setting rather than
// exposing it as a knob.
const resampleQuality = 4

// chunkFeeder is a beep.Streamer reading one channel out of a
// RateAdapter's shared, interleaved input chunk. Several feeders (one
// per output channel) read the same backing chunk independently, each
// with its own frame cursor, so each channel's beep.Resampler can be
// driven without the others' pulls interfering.
type chunkFeeder struct {
	owner   *RateAdapter
	channel int
	pos     int // frames already consumed from owner.chunk
}

func (f *chunkFeeder) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		if !f.owner.ensureFrames(f.pos + 1) {
			break
		}
		v := float64(f.owner.chunk[f.pos*f.owner.channels+f.channel])
		samples[n][0], samples[n][1] = v, v
		f.pos++
		n++
	}
	return n, n > 0
}

func (f *chunkFeeder) Err() error { return nil }

// RateAdapter resamples an interleaved N-channel stream from one
// sample rate to another, grounded on rateadapter.rs's RateAdapter —
// but rateadapter.rs wraps libsoxr directly, which (unlike
// gopxl/beep's beep.Resample) takes a channel count and natively
// resamples interleaved multi-channel frames in one call. beep's
// Resampler only understands 2-channel [2]float64 frames, and its
// resampling math treats L and R independently with no cross-channel
// mixing — so running one L=R=value beep.Resampler per output channel
// and reading back a single slot is mathematically equivalent to a
// native N-channel resample, as long as every channel's resampler is
// fed the same sequence of input frames. chunkFeeder plus the shared
// chunk buffer is what keeps those N independent pulls synchronized
// against one underlying decoder.
type RateAdapter struct {
	inner    sound.SoundReader[float32]
	channels int

	chunk []float32 // interleaved input frames not yet consumed by every feeder
	fini  bool       // inner has reported end of stream

	feeders    []*chunkFeeder
	resamplers []beep.Streamer
	scratch    [][2]float64
}

// NewRateAdapter wraps inner (already at channels channels) to be read
// at outRate instead of inRate. Returns inner unchanged when the rates
// already match, matching new_rate_adapter's identity behavior for a
// no-op conversion (though not its delegate-warned fallback: unlike
// libsoxr's Soxr::create, beep.Resample has no failure mode to fall
// back from).
func NewRateAdapter(inner sound.SoundReader[float32], channels int, inRate, outRate posfloat.PosFloat) sound.SoundReader[float32] {
	if inRate.Compare(outRate) == 0 {
		return inner
	}
	a := &RateAdapter{inner: inner, channels: channels}
	a.feeders = make([]*chunkFeeder, channels)
	a.resamplers = make([]beep.Streamer, channels)
	for c := 0; c < channels; c++ {
		f := &chunkFeeder{owner: a, channel: c}
		a.feeders[c] = f
		a.resamplers[c] = beep.Resample(resampleQuality, beep.SampleRate(inRate.Float32()), beep.SampleRate(outRate.Float32()), f)
	}
	return a
}

// ensureFrames grows chunk, reading from inner, until it holds at
// least minFrames frames or inner is exhausted. Returns false only
// when exhaustion means minFrames frames will never be available.
func (a *RateAdapter) ensureFrames(minFrames int) bool {
	for len(a.chunk)/a.channels < minFrames {
		if a.fini {
			return false
		}
		buf := make([]float32, 1024*a.channels)
		n := a.inner.Read(buf)
		if n == 0 {
			a.fini = true
			return len(a.chunk)/a.channels >= minFrames
		}
		a.chunk = append(a.chunk, buf[:n]...)
	}
	return true
}

// compact drops the prefix of chunk every feeder has already
// consumed, so memory doesn't grow for the lifetime of a long stream.
func (a *RateAdapter) compact() {
	minPos := -1
	for _, f := range a.feeders {
		if minPos < 0 || f.pos < minPos {
			minPos = f.pos
		}
	}
	if minPos <= 0 {
		return
	}
	a.chunk = a.chunk[:copy(a.chunk, a.chunk[minPos*a.channels:])]
	for _, f := range a.feeders {
		f.pos -= minPos
	}
}

func (a *RateAdapter) Read(out []float32) int {
	if len(out)%a.channels != 0 {
		panic("adapter: rate adapter output buffer not a multiple of channel count")
	}
	wantFrames := len(out) / a.channels
	if cap(a.scratch) < wantFrames {
		a.scratch = make([][2]float64, wantFrames)
	}
	scratch := a.scratch[:wantFrames]

	frames := wantFrames
	for c := 0; c < a.channels; c++ {
		n, _ := a.resamplers[c].Stream(scratch)
		if n < frames {
			frames = n
		}
		for i := 0; i < n; i++ {
			out[i*a.channels+c] = float32(scratch[i][0])
		}
	}
	a.compact()
	return frames * a.channels
}

func (a *RateAdapter) Seek(pos uint64) (uint64, bool) {
	panic("adapter: logic error: attempt to seek a rate adapter")
}

func (a *RateAdapter) EstimateLen() (uint64, bool) {
	panic("adapter: logic error: attempt to estimate length of a rate adapter")
}

func (a *RateAdapter) SkipCoarse(count uint64, scratch []float32) uint64 { return 0 }

func (a *RateAdapter) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](a, count, scratch)
}

func (a *RateAdapter) CanBeCloned() bool { return false }

func (a *RateAdapter) AttemptClone() sound.SoundReader[float32] {
	panic("adapter: rate adapter cannot be cloned")
}
