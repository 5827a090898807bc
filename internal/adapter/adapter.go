package adapter

import (
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundman"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
)

// Adaptify resolves snd through sm and wraps it with whatever stages
// are needed to deliver a float32 stream at outSampleRate/
// outSpeakerLayout: always the fade/length/loop stage, then a channel
// remap and/or a rate conversion if the source's own format differs
// from the mixer's. ok is false only when the sound manager can't
// produce a stream for snd at all (still loading).
//
// Grounded on adapter.rs's adaptify. Its channel-remap-before-or-after
// rate-conversion ordering is preserved: remapping is done before
// resampling when the output rate is higher (so the extra work of
// mixing channels happens on fewer, not-yet-upsampled samples), and
// after when the output rate is lower or equal (so resampling shrinks
// the sample count before the channel mix runs over it).
func Adaptify(
	sm *soundman.SoundMan,
	snd *soundtrack.Sound,
	fadeIn posfloat.PosFloat, length *posfloat.PosFloat, fadeOut posfloat.PosFloat, release bool,
	outSampleRate posfloat.PosFloat, outSpeakerLayout sound.SpeakerLayout,
) (sound.SoundReader[float32], bool) {
	fss, ok := sm.GetSound(snd)
	if !ok {
		return nil, false
	}
	inSampleRate := fss.SampleRate
	inSpeakerLayout := fss.SpeakerLayout

	stream := NewLoopAdapter(snd, fss, fadeIn, length, fadeOut, release)

	needChanAdapter := inSpeakerLayout != outSpeakerLayout
	numChannels := inSpeakerLayout.NumChannels()
	if needChanAdapter && inSampleRate.Less(outSampleRate) {
		stream = NewChannelAdapter(stream, inSpeakerLayout, outSpeakerLayout)
		numChannels = outSpeakerLayout.NumChannels()
	}
	if inSampleRate.Compare(outSampleRate) != 0 {
		stream = NewRateAdapter(stream, numChannels, inSampleRate, outSampleRate)
	}
	if needChanAdapter && !inSampleRate.Less(outSampleRate) {
		stream = NewChannelAdapter(stream, inSpeakerLayout, outSpeakerLayout)
	}
	return stream, true
}
