// Package soundman is the sound manager (spec.md §4.4): it owns every
// open decoder, deduplicating loads by file path (and, for streams,
// start point) so the same sound requested by ten simultaneous voices
// is decoded once. It dispatches between two sub-managers kept in
// separate files — BufferMan for whole-file caching (stream=false) and
// StreamMan for per-point decoder pooling (stream=true) — grounded on
// original_source/second-music-system/src/engine/soundman.rs.
package soundman

import (
	"sync"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/taskrt"
	"github.com/pkg/errors"
)

type soundKind int

const (
	kindBuffer soundKind = iota
	kindStream
)

// soundInfo is the bookkeeping SoundMan keeps per sound name, mirroring
// soundman.rs's SoundInfo: which sub-manager owns it, and how many
// live Load calls are outstanding.
type soundInfo struct {
	kind      soundKind
	loadCount int
}

// SoundMan is the engine's single entry point for turning a
// soundtrack.Sound into a readable, correctly-positioned audio stream.
type SoundMan struct {
	mu       sync.Mutex
	delegate sound.SoundDelegate
	infos    map[string]*soundInfo
	buffers  *BufferMan
	streams  *StreamMan
}

func NewSoundMan(delegate sound.SoundDelegate, runtime taskrt.Runtime) *SoundMan {
	return &SoundMan{
		delegate: delegate,
		infos:    make(map[string]*soundInfo),
		buffers:  NewBufferMan(delegate, runtime),
		streams:  NewStreamMan(delegate, runtime),
	}
}

func kindOf(snd *soundtrack.Sound) soundKind {
	if snd.Stream {
		return kindStream
	}
	return kindBuffer
}

// Load asks for snd to be decoded (or have its decode count bumped, if
// already wanted elsewhere). Requesting the same name as both a stream
// and a buffer is a caller bug; it's warned about rather than refused,
// matching the original's leniency there.
func (sm *SoundMan) Load(snd *soundtrack.Sound) {
	sm.mu.Lock()
	kind := kindOf(snd)
	info, ok := sm.infos[snd.Name]
	if ok {
		if info.kind != kind {
			sm.delegate.Warning(errors.Errorf("soundman: %q requested as both a stream and a buffer", snd.Name).Error())
		}
		info.loadCount++
	} else {
		sm.infos[snd.Name] = &soundInfo{kind: kind, loadCount: 1}
	}
	sm.mu.Unlock()

	if kind == kindStream {
		sm.streams.Load(snd.Path, snd.Start)
	} else {
		sm.buffers.Load(snd.Path)
	}
}

// Unload releases one outstanding Load for snd.
func (sm *SoundMan) Unload(snd *soundtrack.Sound) {
	sm.mu.Lock()
	info, ok := sm.infos[snd.Name]
	if ok {
		info.loadCount--
		if info.loadCount <= 0 {
			delete(sm.infos, snd.Name)
		}
	}
	sm.mu.Unlock()

	if !ok {
		return
	}
	if info.kind == kindStream {
		sm.streams.Unload(snd.Path, snd.Start)
	} else {
		sm.buffers.Unload(snd.Path)
	}
}

// UnloadAll drops every outstanding load, for a soundtrack swap or
// engine shutdown.
func (sm *SoundMan) UnloadAll() {
	sm.mu.Lock()
	sm.infos = make(map[string]*soundInfo)
	sm.mu.Unlock()
	sm.buffers.UnloadAll()
	sm.streams.UnloadAll()
}

// IsReady reports whether snd can be opened right now without
// blocking on a background decode.
func (sm *SoundMan) IsReady(snd *soundtrack.Sound) bool {
	if snd.Stream {
		return sm.streams.IsReady(snd.Path, snd.Start)
	}
	return sm.buffers.IsReady(snd.Path)
}

// GetSound opens snd for playback, positioned at its start point. The
// first time a given Sound is opened, if its End was left Unresolved
// by the parser (no explicit end or length in the source), it's
// resolved here against the decoder's own length estimate — the
// deferred half of DeferredEnd's contract, since only the sound
// manager has a live decoder to ask.
func (sm *SoundMan) GetSound(snd *soundtrack.Sound) (sound.FormattedSoundStream, bool) {
	if snd.Stream {
		stream, ok := sm.streams.GetSound(snd.Path, snd.Start)
		if !ok {
			return stream, false
		}
		// The decoder's estimate is the file's total length, whatever
		// position loadStream seeked it to, so it resolves End directly.
		if _, resolved := snd.End.Get(); !resolved {
			if frames, ok := stream.Reader.EstimateLen(); ok {
				snd.End.Resolve(framesToSeconds(frames, stream.SampleRate))
			}
		}
		return stream, true
	}

	stream, ok := sm.buffers.GetSound(snd.Path)
	if !ok {
		return stream, false
	}
	// The buffer reader starts at frame 0 over the whole file, so an
	// estimate taken before seeking is the file's total length.
	if _, resolved := snd.End.Get(); !resolved {
		if frames, ok := stream.Reader.EstimateLen(); ok {
			snd.End.Resolve(framesToSeconds(frames, stream.SampleRate))
		}
	}
	if snd.Start.Compare(posfloat.Zero) > 0 {
		stream.Reader.Seek(snd.Start.SecondsToFrames(stream.SampleRate))
	}
	return stream, true
}

func framesToSeconds(frames uint64, sampleRate posfloat.PosFloat) posfloat.PosFloat {
	rate := sampleRate.Float32()
	if rate <= 0 {
		return posfloat.Zero
	}
	return posfloat.NewClamped(float32(frames) / rate)
}
