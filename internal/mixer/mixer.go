// Package mixer sums the active voices' adapter outputs into one
// output buffer, scaling each by a caller-supplied per-voice volume.
// Grounded on src/engine/mixer.rs.
package mixer

import (
	"github.com/google/uuid"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
)

// VoiceID is a google/uuid-based voice id, collision-proof across
// goroutines. The original addresses voices by a dense integer index;
// the Mixer itself is generic over its id type, and the root package's
// Engine keys its voices by interp.PlayingSoundID rather than VoiceID.
type VoiceID = uuid.UUID

// NewVoiceID mints a fresh voice id.
func NewVoiceID() VoiceID { return uuid.New() }

// VolumeGetter has opinions on how loud each mixer voice should be
// right now. It mirrors mixer.rs's VolumeGetter trait, with Option<T>
// return values translated to a (value, ok) pair.
type VolumeGetter[ID any] interface {
	// StepFadersBy is called after every output buffer with the
	// number of sample frames just mixed; implementations should
	// advance every fader they own by that much.
	StepFadersBy(n posfloat.PosFloat)
	// GetVolume returns the voice's volume t sample frames in the
	// future (0 is the first frame of the buffer being mixed), or
	// ok=false if the voice should stop playing. Some(ZERO) is a
	// valid, alive volume — silence still consumes audio.
	GetVolume(identity ID, t posfloat.PosFloat) (volume posfloat.PosFloat, ok bool)
	// IsVarying returns ok=false if the voice should stop, otherwise
	// whether its volume varies within the buffer about to be mixed
	// (true: must be sampled every frame; false: one value covers the
	// whole buffer). Called for a voice before any GetVolume call for
	// it: once per read pass of a mix (a short read starts another
	// pass), and once per voice by Bump.
	IsVarying(identity ID) (varying bool, ok bool)
}

type channel[ID any] struct {
	stream   sound.SoundReader[float32]
	identity ID
}

// Mixer holds the active voice list and the running output frame
// count.
type Mixer[ID any] struct {
	channels []channel[ID]
	// samplesPerFrame is the channel count of output audio.
	samplesPerFrame             int
	nextOutputSampleFrameNumber uint64
}

// New builds an empty Mixer producing samplesPerFrame samples per
// output sample frame (i.e. the output speaker layout's channel
// count).
func New[ID any](samplesPerFrame int) *Mixer[ID] {
	return &Mixer[ID]{samplesPerFrame: samplesPerFrame}
}

// Play adds a new voice to the mixer.
func (m *Mixer[ID]) Play(stream sound.SoundReader[float32], identity ID) {
	m.channels = append(m.channels, channel[ID]{stream: stream, identity: identity})
}

// Len reports the number of currently active voices, for telemetry
// (engine.Stats' voices-active counter).
func (m *Mixer[ID]) Len() int { return len(m.channels) }

// Mix adds every active voice's samples into out, scaled by
// volumeGetter's opinion, and drops any voice that died during the
// call. Unless combining more than one Mixer's output, out should be
// zeroed by the caller first. scratch must be exactly len(out) long.
func (m *Mixer[ID]) Mix(out []float32, scratch []float32, volumeGetter VolumeGetter[ID]) {
	if len(out)%m.samplesPerFrame != 0 {
		panic("mixer: out is not a whole number of sample frames")
	}
	if len(scratch) != len(out) {
		panic("mixer: scratch must be exactly as long as out")
	}

	alive := m.channels[:0]
	for i := range m.channels {
		ch := m.channels[i]
		if mixChannel(&ch, out, scratch, volumeGetter, m.samplesPerFrame) {
			alive = append(alive, ch)
		}
	}
	m.channels = alive

	outFrames := len(out) / m.samplesPerFrame
	volumeGetter.StepFadersBy(posfloat.NewClamped(float32(outFrames)))
	m.nextOutputSampleFrameNumber += uint64(outFrames)
}

// Bump drops any voice whose VolumeGetter reports it dead, without
// mixing any audio. Use this when the engine needs to notice dead
// voices (e.g. after a kill command) without waiting for the next
// real mix.
func (m *Mixer[ID]) Bump(volumeGetter VolumeGetter[ID]) {
	alive := m.channels[:0]
	for i := range m.channels {
		if _, ok := volumeGetter.IsVarying(m.channels[i].identity); ok {
			alive = append(alive, m.channels[i])
		}
	}
	m.channels = alive
}

// NextOutputSampleFrameNumber is the sample frame number of the next
// frame Mix will write to out[0]; it increases by the frame count
// mixed every call.
func (m *Mixer[ID]) NextOutputSampleFrameNumber() uint64 {
	return m.nextOutputSampleFrameNumber
}

// mixChannel mixes as much of out as ch's stream and volume allow,
// returning whether the channel is still alive.
func mixChannel[ID any](ch *channel[ID], out []float32, mixBuf []float32, volumeGetter VolumeGetter[ID], samplesPerFrame int) bool {
	accumLen := 0
	for len(out) > 0 {
		varying, ok := volumeGetter.IsVarying(ch.identity)
		if !ok {
			return false
		}

		var length int
		if !varying {
			outFrames := len(out) / samplesPerFrame
			t := posfloat.NewClamped(float32(outFrames)).Mul(posfloat.Half)
			volume, ok := volumeGetter.GetVolume(ch.identity, t)
			if !ok {
				return false
			}
			switch {
			case volume == posfloat.Zero:
				if !ch.stream.SkipPrecise(uint64(len(out)), mixBuf[:len(out)]) {
					return false
				}
				length = len(out)
			case volume == posfloat.One:
				n := ch.stream.Read(mixBuf[:len(out)])
				if n%samplesPerFrame != 0 {
					panic("mixer: stream read a partial sample frame")
				}
				for x := 0; x < n; x++ {
					out[x] += mixBuf[x]
				}
				length = n
			default:
				n := ch.stream.Read(mixBuf[:len(out)])
				if n%samplesPerFrame != 0 {
					panic("mixer: stream read a partial sample frame")
				}
				vf := volume.Float32()
				for x := 0; x < n; x++ {
					out[x] += mixBuf[x] * vf
				}
				length = n
			}
		} else {
			n := ch.stream.Read(mixBuf[:len(out)])
			if n%samplesPerFrame != 0 {
				panic("mixer: stream read a partial sample frame")
			}
			length = n
			timeAccum := posfloat.Half
			for x := 0; x < n; x += samplesPerFrame {
				volume, ok := volumeGetter.GetVolume(ch.identity, timeAccum)
				timeAccum = timeAccum.Add(posfloat.One)
				if !ok {
					return false
				}
				if volume == posfloat.Zero {
					// nothing more to mix, and it's assumed there
					// won't be for the rest of the buffer.
					break
				} else if volume == posfloat.One {
					for y := x; y < x+samplesPerFrame; y++ {
						out[y] += mixBuf[y]
					}
				} else {
					vf := volume.Float32()
					for y := x; y < x+samplesPerFrame; y++ {
						out[y] += mixBuf[y] * vf
					}
				}
			}
		}

		if length == 0 {
			return accumLen != 0
		} else if length < len(out) {
			out = out[length:]
			accumLen += length
			continue
		}
		return true
	}
	return true
}
