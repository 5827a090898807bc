// Package ebitendriver drives a secondmusic.Engine through ebiten's
// shared audio context, the same way the teacher repo's internal/audio
// drives a mmlfm sequencer. Grounded on internal/audio/stream.go's
// StreamReader/Player: same float32-over-io.Reader bridge, generalized
// from a SampleSource.Process callback to Engine.TurnHandle.
package ebitendriver

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source is the part of secondmusic.Engine this driver depends on.
// Declared locally instead of importing the root package, so this
// package stays usable by any stereo-output float32 mixer, not just
// secondmusic.Engine.
type Source interface {
	TurnHandle(out []float32)
}

// streamReader turns repeated TurnHandle calls into the stereo,
// little-endian float32 byte stream ebiten's audio.Context wants.
type streamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func (r *streamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const bytesPerFrame = 8 // 2 channels * 4 bytes
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.TurnHandle(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * bytesPerFrame, nil
}

func (r *streamReader) Close() error { return nil }

// Driver plays a Source through ebiten's process-wide audio context.
// The Source's TurnHandle must mix in stereo; construct the
// secondmusic.Engine behind it with sound.Stereo.
type Driver struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	contextOnce sync.Once
	sharedCtx   *ebitaudio.Context
	sharedErr   error
	sharedRate  int
)

// sharedContext mirrors internal/audio's sharedAudioContext: ebiten
// only allows one audio.Context per process, so every Driver in a
// program shares it, and a second sample rate request is an error
// rather than silently resampling.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		sharedRate = sampleRate
		sharedCtx = ebitaudio.NewContext(sampleRate)
	})
	if sharedErr != nil {
		return nil, sharedErr
	}
	if sharedRate != sampleRate {
		return nil, fmt.Errorf("ebitendriver: audio context already initialized at %d Hz (requested %d Hz)", sharedRate, sampleRate)
	}
	return sharedCtx, nil
}

// New creates a Driver pulling audio from source at sampleRate.
func New(sampleRate int, source Source) (*Driver, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := &streamReader{source: source}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Driver{player: pl, reader: reader}, nil
}

func (d *Driver) Play()           { d.player.Play() }
func (d *Driver) Pause()          { d.player.Pause() }
func (d *Driver) IsPlaying() bool { return d.player.IsPlaying() }

// Stop pauses and releases the underlying player. A Driver can't be
// restarted after Stop; create a new one.
func (d *Driver) Stop() error {
	d.player.Pause()
	d.player.Close()
	return d.reader.Close()
}
