package adapter

import "github.com/cbegin/secondmusic-go/internal/sound"

// mixMatrix(in, out) returns the row-major out.NumChannels() x
// in.NumChannels() coefficient matrix such that
// outFrame[o] = sum_i matrix[o*numIn+i] * inFrame[i]. nil means in and
// out are the same layout (or an alias of it, like Stereo/Headphones)
// and no mixing is needed at all.
//
// chanadapter.rs generates thirty of these as distinct monomorphized
// structs, one per ordered layout pair, via make_downmixer!/
// make_upmixer! macro invocations. A channel mix is just a matrix
// multiply, so this Go port keeps the exact per-pair coefficients
// chanadapter.rs hand-derives but expresses all thirty as data for one
// generic ChannelAdapter rather than thirty generated types.
func mixMatrix(in, out sound.SpeakerLayout) [][]float32 {
	if in == out {
		return nil
	}
	if isStereoLike(in) && isStereoLike(out) {
		return nil
	}

	switch in {
	case sound.Mono:
		return monoSource(out)
	case sound.Stereo, sound.Headphones:
		return stereoSource(out)
	case sound.Quadraphonic:
		return quadSource(out)
	case sound.Surround51:
		return surround51Source(out)
	case sound.Surround71:
		return surround71Source(out)
	default:
		return nil
	}
}

func isStereoLike(l sound.SpeakerLayout) bool {
	return l == sound.Stereo || l == sound.Headphones
}

// monoSource mirrors MonoToStereo/MonoToQuadraphonic/MonoToSurround51/
// MonoToSurround71 — the source channel duplicates into front left and
// right for stereo and quadraphonic output, and goes to the center
// channel alone for 5.1/7.1, with every other output channel
// zero-filled.
func monoSource(out sound.SpeakerLayout) [][]float32 {
	switch out {
	case sound.Stereo, sound.Headphones:
		return [][]float32{{1}, {1}}
	case sound.Quadraphonic:
		return [][]float32{{1}, {1}, {0}, {0}}
	case sound.Surround51:
		return [][]float32{{0}, {0}, {1}, {0}, {0}, {0}}
	case sound.Surround71:
		return [][]float32{{0}, {0}, {1}, {0}, {0}, {0}, {0}, {0}}
	default:
		return nil
	}
}

// stereoSource mirrors StereoToMono/StereoToQuadraphonic/
// StereoToSurround51/StereoToSurround71 (also used, via aliasing, for
// a Headphones source). Input order: fl, fr.
func stereoSource(out sound.SpeakerLayout) [][]float32 {
	switch out {
	case sound.Mono:
		return [][]float32{{0.5, 0.5}}
	case sound.Quadraphonic:
		return [][]float32{{1, 0}, {0, 1}, {0, 0}, {0, 0}}
	case sound.Surround51:
		return [][]float32{{1, 0}, {0, 1}, {0, 0}, {0, 0}, {0, 0}, {0, 0}}
	case sound.Surround71:
		return [][]float32{{1, 0}, {0, 1}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}}
	default:
		return nil
	}
}

// quadSource mirrors QuadraphonicToMono/QuadraphonicToStereo/
// QuadraphonicToSurround51/QuadraphonicToSurround71. Input order: fl,
// fr, rl, rr.
func quadSource(out sound.SpeakerLayout) [][]float32 {
	switch out {
	case sound.Mono:
		return [][]float32{{0.25, 0.25, 0.25, 0.25}}
	case sound.Stereo, sound.Headphones:
		return [][]float32{
			{0.5, 0, 0.5, 0},
			{0, 0.5, 0, 0.5},
		}
	case sound.Surround51:
		return [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
		}
	case sound.Surround71:
		return [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
		}
	default:
		return nil
	}
}

// surround51Source mirrors Surround51ToMono/ToStereo/ToQuadraphonic/
// ToSurround71. Input order: fl, fr, c, lfe, rl, rr (lfe never
// contributes to a downmix, matching the Rust `_lfe` bindings).
func surround51Source(out sound.SpeakerLayout) [][]float32 {
	const half = 0.5
	switch out {
	case sound.Mono:
		return [][]float32{{0.2, 0.2, 0.2, 0, 0.2, 0.2}}
	case sound.Stereo, sound.Headphones:
		k := float32(1.0 / 2.5)
		return [][]float32{
			{k, 0, half * k, 0, k, 0},
			{0, k, half * k, 0, 0, k},
		}
	case sound.Quadraphonic:
		k := float32(1.0 / 1.5)
		return [][]float32{
			{k, 0, half * k, 0, 0, 0},
			{0, k, half * k, 0, 0, 0},
			{0, 0, 0, 0, k, 0},
			{0, 0, 0, 0, 0, k},
		}
	case sound.Surround71:
		return [][]float32{
			{1, 0, 0, 0, 0, 0},
			{0, 1, 0, 0, 0, 0},
			{0, 0, 1, 0, 0, 0},
			{0, 0, 0, 1, 0, 0},
			{0, 0, 0, 0, 1, 0},
			{0, 0, 0, 0, 0, 1},
			{0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0},
		}
	default:
		return nil
	}
}

// surround71Source mirrors Surround71ToMono/ToStereo/ToQuadraphonic/
// ToSurround51. Input order: fl, fr, c, lfe, rl, rr, sl, sr.
func surround71Source(out sound.SpeakerLayout) [][]float32 {
	const half = 0.5
	switch out {
	case sound.Mono:
		k := float32(1.0 / 7.0)
		return [][]float32{{k, k, k, 0, k, k, k, k}}
	case sound.Stereo, sound.Headphones:
		k := float32(1.0 / 3.5)
		return [][]float32{
			{k, 0, half * k, 0, k, 0, k, 0},
			{0, k, half * k, 0, 0, k, 0, k},
		}
	case sound.Quadraphonic:
		k := float32(0.5)
		return [][]float32{
			{k, 0, half * k, 0, 0, 0, half * k, 0},
			{0, k, half * k, 0, 0, 0, 0, half * k},
			{0, 0, 0, 0, k, 0, half * k, 0},
			{0, 0, 0, 0, 0, k, 0, half * k},
		}
	case sound.Surround51:
		k := float32(1.0 / 1.5)
		return [][]float32{
			{k, 0, 0, 0, 0, 0, half * k, 0},
			{0, k, 0, 0, 0, 0, 0, half * k},
			{0, 0, k, 0, 0, 0, 0, 0},
			{0, 0, 0, k, 0, 0, 0, 0},
			{0, 0, 0, 0, k, 0, half * k, 0},
			{0, 0, 0, 0, 0, k, 0, half * k},
		}
	default:
		return nil
	}
}

// ChannelAdapter remaps a stream from one speaker layout to another
// via a fixed mix matrix, grounded on chanadapter.rs's thirty
// per-pair upmixer/downmixer structs. NewChannelAdapter returns inner
// unchanged when no mixing is needed, matching new_channel_adapter's
// identity arms.
type ChannelAdapter struct {
	inner      sound.SoundReader[float32]
	inChannels int
	matrix     [][]float32
	scratch    []float32
}

// NewChannelAdapter wraps inner, read in inLayout, to be read as
// outLayout instead.
func NewChannelAdapter(inner sound.SoundReader[float32], inLayout, outLayout sound.SpeakerLayout) sound.SoundReader[float32] {
	matrix := mixMatrix(inLayout, outLayout)
	if matrix == nil {
		return inner
	}
	return &ChannelAdapter{inner: inner, inChannels: inLayout.NumChannels(), matrix: matrix}
}

func (c *ChannelAdapter) outChannels() int { return len(c.matrix) }

func (c *ChannelAdapter) Read(out []float32) int {
	outChannels := c.outChannels()
	if len(out)%outChannels != 0 {
		panic("adapter: channel adapter output buffer not a multiple of output channel count")
	}
	inLen := len(out) * c.inChannels / outChannels
	if cap(c.scratch) < inLen {
		c.scratch = make([]float32, inLen)
	}
	scratch := c.scratch[:inLen]

	read := c.inner.Read(scratch)
	if read%c.inChannels != 0 {
		panic("adapter: channel adapter input did not read an exact number of frames")
	}
	frames := read / c.inChannels

	for f := 0; f < frames; f++ {
		inFrame := scratch[f*c.inChannels : f*c.inChannels+c.inChannels]
		outFrame := out[f*outChannels : f*outChannels+outChannels]
		for o, row := range c.matrix {
			var v float32
			for i, coef := range row {
				v += coef * inFrame[i]
			}
			outFrame[o] = v
		}
	}
	return frames * outChannels
}

func (c *ChannelAdapter) Seek(pos uint64) (uint64, bool) {
	panic("adapter: logic error: attempt to seek a channel adapter")
}

func (c *ChannelAdapter) EstimateLen() (uint64, bool) {
	panic("adapter: logic error: attempt to estimate length of a channel adapter")
}

func (c *ChannelAdapter) SkipCoarse(outCount uint64, scratch []float32) uint64 {
	outChannels := uint64(c.outChannels())
	inSkipped := c.inner.SkipCoarse(outCount*uint64(c.inChannels)/outChannels, scratch)
	return inSkipped * outChannels / uint64(c.inChannels)
}

func (c *ChannelAdapter) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](c, count, scratch)
}

func (c *ChannelAdapter) CanBeCloned() bool { return false }

func (c *ChannelAdapter) AttemptClone() sound.SoundReader[float32] {
	panic("adapter: channel adapter cannot be cloned")
}
