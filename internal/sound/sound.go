// Package sound defines the host-facing audio contract: the sample
// formats and speaker layouts a sound file can be stored in, the
// per-format reader a host-supplied decoder must implement, and the
// delegate that opens files and reports warnings. Everything in the
// engine above the sound manager deals only in float32; this package
// is the seam where native-format samples get converted to it.
package sound

import "github.com/cbegin/secondmusic-go/internal/posfloat"

// SpeakerLayout describes the channel count and role assignment of a
// sample frame, for both on-disk formats and engine output.
type SpeakerLayout int

const (
	Mono SpeakerLayout = iota
	Stereo
	Headphones
	Quadraphonic
	Surround51
	Surround71
)

// NumChannels returns the channel count of a speaker layout.
func (l SpeakerLayout) NumChannels() int {
	switch l {
	case Mono:
		return 1
	case Stereo, Headphones:
		return 2
	case Quadraphonic:
		return 4
	case Surround51:
		return 6
	case Surround71:
		return 8
	default:
		return 1
	}
}

// SampleFormat tags which native sample type a FormattedSoundReader
// wraps.
type SampleFormat int

const (
	FormatU8 SampleFormat = iota
	FormatU16
	FormatI8
	FormatI16
	FormatF32
)

// Sample is the set of native sample representations a host decoder
// may produce.
type Sample interface {
	~uint8 | ~uint16 | ~int8 | ~int16 | ~float32
}

// toFloatSample normalizes a native sample to the engine's [-1, 1]
// float32 domain. Zero points and scale factors per format.
func toFloatSample[T Sample](v T) float32 {
	switch x := any(v).(type) {
	case uint8:
		return (float32(x) - 128) * (1.0 / 128.0)
	case uint16:
		return (float32(x) - 32768) * (1.0 / 32768.0)
	case int8:
		return float32(x) * (1.0 / 128.0)
	case int16:
		return float32(x) * (1.0 / 32768.0)
	case float32:
		return x
	default:
		panic("sound: unreachable sample type")
	}
}

// SoundReader is implemented by a host-supplied decoder over one
// native sample type. Read returning fewer samples than requested
// signals end of stream. Seek may only ever land at or before the
// requested frame; returning false means "reopen from the start
// instead". SkipCoarse/SkipPrecise/CanBeCloned/EstimateLen default to
// the conservative "can't do it" answer — decoders that can do better
// implement their own and skip DefaultSkipPrecise.
type SoundReader[T Sample] interface {
	Read(buf []T) int
	Seek(frame uint64) (actual uint64, ok bool)
	SkipCoarse(count uint64, scratch []T) uint64
	SkipPrecise(count uint64, scratch []T) bool
	CanBeCloned() bool
	AttemptClone() SoundReader[T]
	EstimateLen() (frames uint64, ok bool)
}

// DefaultSkipPrecise implements SkipPrecise as SkipCoarse followed by
// repeated Read, for decoders with no faster way to skip.
func DefaultSkipPrecise[T Sample](r SoundReader[T], count uint64, scratch []T) bool {
	skipped := r.SkipCoarse(count, scratch)
	if skipped > count {
		panic("sound: SkipCoarse skipped more samples than requested")
	}
	remaining := count - skipped
	for remaining > 0 {
		amt := uint64(len(scratch))
		if remaining < amt {
			amt = remaining
		}
		n := r.Read(scratch[:amt])
		if n == 0 {
			return false
		}
		remaining -= uint64(n)
	}
	return true
}

func typedSkip[T Sample](r SoundReader[T], count uint64) bool {
	scratch := make([]T, 4096)
	return DefaultSkipPrecise(r, count, scratch)
}

// FormattedSoundReader is a tagged union over the five native reader
// types, so callers that don't care about the native format (the
// sound manager's bookkeeping, the fade adapter's ReadFloat) don't
// need to be generic themselves.
type FormattedSoundReader struct {
	Format SampleFormat
	u8     SoundReader[uint8]
	u16    SoundReader[uint16]
	i8     SoundReader[int8]
	i16    SoundReader[int16]
	f32    SoundReader[float32]
}

func NewU8Reader(r SoundReader[uint8]) FormattedSoundReader   { return FormattedSoundReader{Format: FormatU8, u8: r} }
func NewU16Reader(r SoundReader[uint16]) FormattedSoundReader { return FormattedSoundReader{Format: FormatU16, u16: r} }
func NewI8Reader(r SoundReader[int8]) FormattedSoundReader    { return FormattedSoundReader{Format: FormatI8, i8: r} }
func NewI16Reader(r SoundReader[int16]) FormattedSoundReader  { return FormattedSoundReader{Format: FormatI16, i16: r} }
func NewF32Reader(r SoundReader[float32]) FormattedSoundReader { return FormattedSoundReader{Format: FormatF32, f32: r} }

// ReadFloat reads up to len(buf) samples, normalizing each to
// float32, and returns the count actually read. 0 means end of
// stream, the convention every adapter in this engine follows.
func (f *FormattedSoundReader) ReadFloat(buf []float32) int {
	switch f.Format {
	case FormatU8:
		tmp := make([]uint8, len(buf))
		n := f.u8.Read(tmp)
		for i := 0; i < n; i++ {
			buf[i] = toFloatSample(tmp[i])
		}
		return n
	case FormatU16:
		tmp := make([]uint16, len(buf))
		n := f.u16.Read(tmp)
		for i := 0; i < n; i++ {
			buf[i] = toFloatSample(tmp[i])
		}
		return n
	case FormatI8:
		tmp := make([]int8, len(buf))
		n := f.i8.Read(tmp)
		for i := 0; i < n; i++ {
			buf[i] = toFloatSample(tmp[i])
		}
		return n
	case FormatI16:
		tmp := make([]int16, len(buf))
		n := f.i16.Read(tmp)
		for i := 0; i < n; i++ {
			buf[i] = toFloatSample(tmp[i])
		}
		return n
	case FormatF32:
		return f.f32.Read(buf)
	default:
		panic("sound: unreachable sample format")
	}
}

// AsU8 returns the wrapped native reader when Format is FormatU8.
func (f *FormattedSoundReader) AsU8() (SoundReader[uint8], bool) {
	if f.Format != FormatU8 {
		return nil, false
	}
	return f.u8, true
}

// AsU16 returns the wrapped native reader when Format is FormatU16.
func (f *FormattedSoundReader) AsU16() (SoundReader[uint16], bool) {
	if f.Format != FormatU16 {
		return nil, false
	}
	return f.u16, true
}

// AsI8 returns the wrapped native reader when Format is FormatI8.
func (f *FormattedSoundReader) AsI8() (SoundReader[int8], bool) {
	if f.Format != FormatI8 {
		return nil, false
	}
	return f.i8, true
}

// AsI16 returns the wrapped native reader when Format is FormatI16.
func (f *FormattedSoundReader) AsI16() (SoundReader[int16], bool) {
	if f.Format != FormatI16 {
		return nil, false
	}
	return f.i16, true
}

// AsF32 returns the wrapped native reader when Format is FormatF32.
func (f *FormattedSoundReader) AsF32() (SoundReader[float32], bool) {
	if f.Format != FormatF32 {
		return nil, false
	}
	return f.f32, true
}

// Seek forwards to the wrapped reader's Seek for its native format.
func (f *FormattedSoundReader) Seek(pos uint64) (uint64, bool) {
	switch f.Format {
	case FormatU8:
		return f.u8.Seek(pos)
	case FormatU16:
		return f.u16.Seek(pos)
	case FormatI8:
		return f.i8.Seek(pos)
	case FormatI16:
		return f.i16.Seek(pos)
	case FormatF32:
		return f.f32.Seek(pos)
	default:
		panic("sound: unreachable sample format")
	}
}

// CanBeCloned reports whether AttemptClone will succeed.
func (f *FormattedSoundReader) CanBeCloned() bool {
	switch f.Format {
	case FormatU8:
		return f.u8.CanBeCloned()
	case FormatU16:
		return f.u16.CanBeCloned()
	case FormatI8:
		return f.i8.CanBeCloned()
	case FormatI16:
		return f.i16.CanBeCloned()
	case FormatF32:
		return f.f32.CanBeCloned()
	default:
		return false
	}
}

// AttemptClone clones the wrapped reader; callers must check
// CanBeCloned first, as the underlying reader may panic otherwise.
func (f *FormattedSoundReader) AttemptClone() FormattedSoundReader {
	switch f.Format {
	case FormatU8:
		return NewU8Reader(f.u8.AttemptClone())
	case FormatU16:
		return NewU16Reader(f.u16.AttemptClone())
	case FormatI8:
		return NewI8Reader(f.i8.AttemptClone())
	case FormatI16:
		return NewI16Reader(f.i16.AttemptClone())
	case FormatF32:
		return NewF32Reader(f.f32.AttemptClone())
	default:
		panic("sound: unreachable sample format")
	}
}

// EstimateLen returns a best-guess frame count; only meaningful
// before any Read/Seek/Skip has happened.
func (f *FormattedSoundReader) EstimateLen() (uint64, bool) {
	switch f.Format {
	case FormatU8:
		return f.u8.EstimateLen()
	case FormatU16:
		return f.u16.EstimateLen()
	case FormatI8:
		return f.i8.EstimateLen()
	case FormatI16:
		return f.i16.EstimateLen()
	case FormatF32:
		return f.f32.EstimateLen()
	default:
		return 0, false
	}
}

// Skip skips exactly count samples, in the reader's native format,
// discarding them; used to preroll a decoder to a start point without
// paying for float conversion of data nobody will hear.
func (f *FormattedSoundReader) Skip(count uint64) bool {
	switch f.Format {
	case FormatU8:
		return typedSkip[uint8](f.u8, count)
	case FormatU16:
		return typedSkip[uint16](f.u16, count)
	case FormatI8:
		return typedSkip[int8](f.i8, count)
	case FormatI16:
		return typedSkip[int16](f.i16, count)
	case FormatF32:
		return typedSkip[float32](f.f32, count)
	default:
		panic("sound: unreachable sample format")
	}
}

// FormattedSoundStream is a decoder together with the format
// metadata the adapter pipeline needs to convert it to the engine's
// rate and layout.
type FormattedSoundStream struct {
	SampleRate    posfloat.PosFloat
	SpeakerLayout SpeakerLayout
	Reader        FormattedSoundReader
}

func (s *FormattedSoundStream) CanBeCloned() bool { return s.Reader.CanBeCloned() }

func (s *FormattedSoundStream) AttemptClone() FormattedSoundStream {
	return FormattedSoundStream{
		SampleRate:    s.SampleRate,
		SpeakerLayout: s.SpeakerLayout,
		Reader:        s.Reader.AttemptClone(),
	}
}

// SoundDelegate is the host's hook for opening sound files and
// surfacing diagnostics. Implementations must be safe to call
// concurrently from background loading goroutines.
type SoundDelegate interface {
	OpenFile(name string) (FormattedSoundStream, bool)
	Warning(message string)
}

type emptyReader struct{}

func (emptyReader) Read(buf []float32) int                       { return 0 }
func (emptyReader) Seek(frame uint64) (uint64, bool)              { return frame, true }
func (emptyReader) SkipCoarse(count uint64, scratch []float32) uint64 { return count }
func (emptyReader) SkipPrecise(count uint64, scratch []float32) bool  { return count == 0 }
func (emptyReader) CanBeCloned() bool                             { return true }
func (emptyReader) AttemptClone() SoundReader[float32]            { return emptyReader{} }
func (emptyReader) EstimateLen() (uint64, bool)                   { return 0, true }

// Empty returns a silent stream of zero length, substituted whenever
// a load fails so playback can proceed without a gap in the voice
// list (§7's "backend load failure" policy).
func Empty() FormattedSoundStream {
	return FormattedSoundStream{
		SampleRate:    posfloat.MustNew(44100),
		SpeakerLayout: Mono,
		Reader:        NewF32Reader(emptyReader{}),
	}
}
