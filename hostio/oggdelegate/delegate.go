// Package oggdelegate implements sound.SoundDelegate over a directory
// of .ogg files on disk, decoding through jfreymuth/oggvorbis straight
// to float32. Grounded on original_source's file-backed sound
// delegate (engine.rs's GenericSoundMan callers all assume an
// OpenFile/Warning-shaped host hook) and on internal/adapter's own
// _test.go fixedReader fixtures for the exact SoundReader contract
// this package has to satisfy.
package oggdelegate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jfreymuth/oggvorbis"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
)

var _ sound.SoundDelegate = (*Delegate)(nil)

// Delegate opens "<Root>/<name>.ogg" files for the engine's sound
// manager. Warn receives diagnostics reported via Warning as well as
// decode failures from OpenFile itself; a nil Warn discards them.
type Delegate struct {
	Root string
	Warn func(message string)
}

func (d *Delegate) warn(message string) {
	if d.Warn != nil {
		d.Warn(message)
	}
}

// Warning implements sound.SoundDelegate.
func (d *Delegate) Warning(message string) { d.warn(message) }

// OpenFile implements sound.SoundDelegate, opening name (without
// extension) as name+".ogg" beneath Root.
func (d *Delegate) OpenFile(name string) (sound.FormattedSoundStream, bool) {
	path := filepath.Join(d.Root, name+".ogg")
	r, err := openVorbis(path)
	if err != nil {
		d.warn(fmt.Sprintf("oggdelegate: %s: %v", name, err))
		return sound.FormattedSoundStream{}, false
	}
	layout, err := layoutForChannels(r.decoder.Channels())
	if err != nil {
		r.file.Close()
		d.warn(fmt.Sprintf("oggdelegate: %s: %v", name, err))
		return sound.FormattedSoundStream{}, false
	}
	return sound.FormattedSoundStream{
		SampleRate:    posfloat.MustNew(float32(r.decoder.SampleRate())),
		SpeakerLayout: layout,
		Reader:        sound.NewF32Reader(r),
	}, true
}

func layoutForChannels(n int) (sound.SpeakerLayout, error) {
	switch n {
	case 1:
		return sound.Mono, nil
	case 2:
		return sound.Stereo, nil
	case 4:
		return sound.Quadraphonic, nil
	case 6:
		return sound.Surround51, nil
	case 8:
		return sound.Surround71, nil
	default:
		return 0, fmt.Errorf("unsupported channel count %d", n)
	}
}

func openVorbis(path string) (*oggReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &oggReader{path: path, file: f, decoder: dec}, nil
}

var _ sound.SoundReader[float32] = (*oggReader)(nil)

// oggReader adapts a single open *oggvorbis.Reader (and the *os.File
// backing it) to sound.SoundReader[float32]. Vorbis bitstreams carry
// no byte-accurate random access, so Seek reopens the file and decodes
// forward from its start, SkipCoarse skips nothing, and SkipPrecise
// decodes forward from the current position via
// sound.DefaultSkipPrecise, same as every other adapter-facing
// SoundReader in this module that can't do better than sequential
// decode.
type oggReader struct {
	path    string
	file    *os.File
	decoder *oggvorbis.Reader
}

func (r *oggReader) Read(buf []float32) int {
	n, err := r.decoder.Read(buf)
	if err != nil && err != io.EOF {
		return 0
	}
	return n
}

// Seek reopens the file and decodes forward to frame, since this is
// the only seek strategy guaranteed correct for every vorbis stream
// regardless of whether it carries a seek table. Used by
// adapter.LoopAdapter to rewind to a loop point; not the fast path for
// long files, but correctness over a stream format that isn't this
// port's primary target (original_source ships with wav/pcm content;
// see DESIGN.md) matters more than raw seek speed here.
func (r *oggReader) Seek(frame uint64) (uint64, bool) {
	fresh, err := openVorbis(r.path)
	if err != nil {
		return 0, false
	}
	r.file.Close()
	*r = *fresh
	if frame == 0 {
		return 0, true
	}
	scratch := make([]float32, 4096*r.decoder.Channels())
	if !sound.DefaultSkipPrecise[float32](r, frame*uint64(r.decoder.Channels()), scratch) {
		return 0, false
	}
	return frame, true
}

func (r *oggReader) SkipCoarse(count uint64, scratch []float32) uint64 {
	return 0
}

func (r *oggReader) SkipPrecise(count uint64, scratch []float32) bool {
	return sound.DefaultSkipPrecise[float32](r, count, scratch)
}

func (r *oggReader) CanBeCloned() bool { return true }

func (r *oggReader) AttemptClone() sound.SoundReader[float32] {
	fresh, err := openVorbis(r.path)
	if err != nil {
		return r
	}
	return fresh
}

func (r *oggReader) EstimateLen() (uint64, bool) {
	n := r.decoder.Length()
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}
