// Package adapter is the stage between the sound manager and the
// mixer: it turns a raw, native-format decoder into the float32,
// engine-rate, engine-layout stream the mixer's voice list expects,
// applying fade in/out, a requested play length, and (per
// SPEC_FULL.md's supplemented loop feature) an optional inner loop
// along the way. Grounded on
// original_source/second-music-system/src/engine/adapter.rs and its
// adapter/ submodules.
package adapter

import (
	"math"

	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
)

// ceilFrames is seconds*sampleRate rounded up to a whole frame count,
// for the loop/outer-length boundaries that must never be cut short
// by a fractional frame — the same rounding loopadapter.rs applies
// with its own `.ceil() as u64` calls. posfloat.PosFloat only exposes
// a flooring conversion (SecondsToFrames), so this is a local helper
// rather than a new method there, following the precedent at
// internal/vm/vm.go's own local math.Ceil use.
func ceilFrames(seconds, sampleRate posfloat.PosFloat) uint64 {
	return uint64(math.Ceil(float64(seconds.Float32()) * float64(sampleRate.Float32())))
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// LoopAdapter is the f32-producing stage that reads a native-format
// decoder, applies a fade-in, a requested play length with an
// optional inner loop, and a fade-out, then stops. Unlike
// loopadapter.rs, which is generic over the native sample type T and
// instantiated five ways by new_loop_adapter's match, this struct
// wraps a sound.FormattedSoundReader, which already carries that
// per-format dispatch internally (ReadFloat does the T-to-float32
// conversion loopadapter.rs does by hand) — so one Go type covers
// what five monomorphized Rust ones did.
//
// Fields deal in raw samples (sample frame count times channel
// count), not sample frames, except where noted — matching
// loopadapter.rs's own "except one field" comment.
type LoopAdapter struct {
	source   sound.FormattedSoundReader
	channels int

	// samplesTillNextInnerLoop is samples left before the inner loop
	// restarts. nil means it never will.
	samplesTillNextInnerLoop *uint64
	// samplesTillEndOfOuterLoop is samples left before the requested
	// length is over. nil means it's already over and any fade-out
	// has begun.
	samplesTillEndOfOuterLoop *uint64
	// samplesLeft is samples left before the adapter stops for good.
	samplesLeft uint64

	// innerLoopStartFrame is a sample FRAME offset, not a sample count.
	innerLoopStartFrame uint64
	innerLoopLengthSamples *uint64

	fadeIn  *fader.Fader
	fadeOut *fader.Fader
	release bool
}

// NewLoopAdapter builds the fade/length/loop stage for snd, reading
// from stream. length is the caller's requested play length in
// seconds (nil plays the sound's own [Start,End) window once); when
// length is non-nil and snd.Loop is set, the sound's own [Start,End)
// window becomes an inner loop repeated to fill length. release
// mirrors spec.md's note-off semantics: with release on, a
// non-positive fadeOut is simply no fade-out at all; with release
// off, a non-positive fadeOut becomes an instant cut rather than
// being skipped — grounded on loopadapter.rs's LoopAdapter::new.
func NewLoopAdapter(
	snd *soundtrack.Sound,
	stream sound.FormattedSoundStream,
	fadeIn posfloat.PosFloat,
	length *posfloat.PosFloat,
	fadeOut posfloat.PosFloat,
	release bool,
) sound.SoundReader[float32] {
	channels := stream.SpeakerLayout.NumChannels()
	rate := stream.SampleRate
	fadeOutSeconds := posfloat.NewClamped(float32(math.Max(float64(fadeOut.Float32()), 0)))

	var nextInner, endOfOuter, innerLen *uint64
	var innerStart uint64
	var left uint64

	if length != nil {
		endoVal := length.SecondsToFrames(rate) * uint64(channels)
		endOfOuter = &endoVal
		totalSeconds := length.Add(fadeOutSeconds)
		left = ceilFrames(totalSeconds, rate) * uint64(channels)

		if snd.Loop {
			end, _ := snd.End.Get()
			innerStart = snd.Start.SecondsToFrames(rate)
			loopEndFrame := ceilFrames(end, rate)
			innerLenSamples := (loopEndFrame - innerStart) * uint64(channels)
			innerLen = &innerLenSamples
			nextVal := innerLenSamples
			nextInner = &nextVal
		}
	} else {
		end, _ := snd.End.Get()
		windowLen := end.SaturatingSub(snd.Start)
		endoSeconds := windowLen.SaturatingSub(fadeOutSeconds)
		endoVal := ceilFrames(endoSeconds, rate) * uint64(channels)
		endOfOuter = &endoVal
		left = ceilFrames(windowLen, rate) * uint64(channels)
	}

	var fadeInFader *fader.Fader
	if fi, ok := fader.MaybeStart(fader.Linear, posfloat.Zero, posfloat.One, fadeIn.SecondsToFracFrames(rate)); ok {
		fadeInFader = &fi
	}
	var fadeOutFader *fader.Fader
	fadeOutFrames := fadeOut.SecondsToFracFrames(rate)
	if release {
		if fo, ok := fader.MaybeStart(fader.Linear, posfloat.One, posfloat.Zero, fadeOutFrames); ok {
			fadeOutFader = &fo
		}
	} else {
		fo := fader.Start(fader.Linear, posfloat.One, posfloat.Zero, fadeOutFrames)
		fadeOutFader = &fo
	}

	return &LoopAdapter{
		source:                    stream.Reader,
		channels:                  channels,
		samplesTillNextInnerLoop:  nextInner,
		samplesTillEndOfOuterLoop: endOfOuter,
		samplesLeft:               left,
		innerLoopStartFrame:       innerStart,
		innerLoopLengthSamples:    innerLen,
		fadeIn:                    fadeInFader,
		fadeOut:                   fadeOutFader,
		release:                   release,
	}
}

func (a *LoopAdapter) Read(out []float32) int {
	if a.samplesLeft == 0 {
		return 0
	}
	if a.samplesTillEndOfOuterLoop != nil && *a.samplesTillEndOfOuterLoop == 0 {
		if a.release {
			a.samplesTillNextInnerLoop = nil
		}
		a.samplesTillEndOfOuterLoop = nil
	}

	didLoop := false
	if a.samplesTillNextInnerLoop != nil && *a.samplesTillNextInnerLoop == 0 {
		newPos, ok := a.source.Seek(a.innerLoopStartFrame)
		if !ok {
			panic("adapter: loop adapter requires a seekable stream")
		}
		if newPos > a.innerLoopStartFrame {
			panic("adapter: sound delegate seeked past the requested loop point")
		}
		toSkip := (a.innerLoopStartFrame - newPos) * uint64(a.channels)
		if toSkip > 0 {
			a.source.Skip(toSkip)
		}
		next := *a.innerLoopLengthSamples
		a.samplesTillNextInnerLoop = &next
		didLoop = true
	}

	amountToRead := uint64(len(out))
	if a.samplesTillNextInnerLoop != nil {
		amountToRead = minU64(amountToRead, *a.samplesTillNextInnerLoop)
	}
	if a.samplesTillEndOfOuterLoop != nil {
		amountToRead = minU64(amountToRead, *a.samplesTillEndOfOuterLoop)
	}
	amountToRead = minU64(amountToRead, a.samplesLeft)
	if amountToRead%uint64(a.channels) != 0 {
		panic("adapter: loop adapter boundary landed mid-frame")
	}
	n := int(amountToRead)

	read := a.source.ReadFloat(out[:n])
	if read%a.channels != 0 {
		panic("adapter: sound delegate read a partial sample frame")
	}

	a.samplesLeft -= uint64(read)
	if a.samplesTillNextInnerLoop != nil {
		*a.samplesTillNextInnerLoop -= uint64(read)
	}
	if a.samplesTillEndOfOuterLoop != nil {
		*a.samplesTillEndOfOuterLoop -= uint64(read)
	}

	if read == 0 {
		if didLoop {
			return 0
		}
		if a.samplesTillNextInnerLoop != nil {
			zero := uint64(0)
			a.samplesTillNextInnerLoop = &zero
			return a.Read(out)
		}
		return 0
	}

	if a.fadeIn != nil {
		if applyFade(out[:read], a.fadeIn, a.channels) {
			a.fadeIn = nil
		}
	}
	if a.samplesTillEndOfOuterLoop == nil && a.fadeOut != nil {
		if applyFade(out[:read], a.fadeOut, a.channels) {
			a.fadeOut = nil
			a.samplesLeft = 0
		}
	}
	return read
}

// applyFade multiplies buf in place by f's per-frame volume and steps
// f forward by the frames consumed, reporting whether f is now
// complete. Factored out of Read because loopadapter.rs applies the
// identical loop twice, once for fade-in and once for fade-out.
func applyFade(buf []float32, f *fader.Fader, channels int) bool {
	frames := len(buf) / channels
	outN := 0
	for i := 0; i < frames; i++ {
		eval := f.EvaluateT(posfloat.NewClamped(float32(i))).Float32()
		for c := 0; c < channels; c++ {
			buf[outN] *= eval
			outN++
		}
	}
	f.StepBy(posfloat.NewClamped(float32(frames)))
	return f.Complete()
}

func (a *LoopAdapter) Seek(pos uint64) (uint64, bool) {
	panic("adapter: logic error: attempt to seek a loop adapter")
}

func (a *LoopAdapter) EstimateLen() (uint64, bool) {
	panic("adapter: logic error: attempt to estimate length of a loop adapter")
}

// SkipCoarse has no fast path, matching loopadapter.rs's unimplemented
// skip (its read-side TODO); SkipPrecise falls back to Read-driven
// skipping via sound.DefaultSkipPrecise.
func (a *LoopAdapter) SkipCoarse(count uint64, scratch []float32) uint64 { return 0 }

func (a *LoopAdapter) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](a, count, scratch)
}

// CanBeCloned is always false: a LoopAdapter's fade/loop state is
// unique to one playback instance, matching the SoundReader trait's
// default (loopadapter.rs never overrides can_be_cloned/attempt_clone).
func (a *LoopAdapter) CanBeCloned() bool { return false }

func (a *LoopAdapter) AttemptClone() sound.SoundReader[float32] {
	panic("adapter: loop adapter cannot be cloned")
}
