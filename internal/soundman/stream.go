package soundman

import (
	"sync"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
	"github.com/cbegin/secondmusic-go/internal/taskrt"
	"github.com/pkg/errors"
)

// streamKey identifies one streaming decode point: a file plus the
// offset playback starts from. posfloat.PosFloat disallows NaN by
// construction, so this flattens Rust's nested
// HashMap<String, HashMap<StartTime, ...>> (which needed a NaN-safe
// StartTime newtype to be used as a key at all) into one flat map.
type streamKey struct {
	path  string
	start posfloat.PosFloat
}

// instState is one decoder instance's lifecycle state within a
// pointCache.
type instState int

const (
	instLoading instState = iota
	instLoaded
)

type cachedStream struct {
	state  instState
	ch     <-chan sound.FormattedSoundStream
	stream sound.FormattedSoundStream
}

// pointCache is the set of decoder instances backing one streamKey.
// Grounded on the dead die::CachedStreams in
// original_source/second-music-system/src/engine/soundman/stream.rs —
// see DESIGN.md for why a never-compiled Rust module is the grounding
// source: spec.md §4.4's prose (background-loaded replacements,
// cloneable-vs-not classification) describes that design, not the
// simpler ForegroundStreamMan that's actually reachable in the
// original binary.
//
// Once the first instance finishes loading, canClone records whether
// FormattedSoundStream.CanBeCloned() held for it. A cloneable decoder
// (e.g. a whole-file-backed reader) needs only one live instance,
// served to every caller via AttemptClone; a non-cloneable one (most
// real file streams) needs up to desiredCount independent instances,
// replenished in the background every time GetSound hands one out.
type pointCache struct {
	desiredCount int
	canClone     *bool
	cloneSource  *cachedStream
	instances    []*cachedStream
}

// StreamMan is the sound manager's per-point streaming cache for
// sounds loaded with stream=true.
type StreamMan struct {
	mu       sync.Mutex
	delegate sound.SoundDelegate
	runtime  taskrt.Runtime
	points   map[streamKey]*pointCache
}

func NewStreamMan(delegate sound.SoundDelegate, runtime taskrt.Runtime) *StreamMan {
	return &StreamMan{
		delegate: delegate,
		runtime:  runtime,
		points:   make(map[streamKey]*pointCache),
	}
}

// Load registers one more desired play from (path, start), spinning up
// a point cache and its first background decode the first time this
// point is seen.
func (sm *StreamMan) Load(path string, start posfloat.PosFloat) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := streamKey{path, start}
	pc, ok := sm.points[key]
	if !ok {
		pc = &pointCache{desiredCount: 1}
		sm.points[key] = pc
		sm.loadOneMore(key, pc)
		return
	}
	pc.desiredCount++
	sm.loadOneMore(key, pc)
}

// Unload retires one desired play from (path, start); the point cache
// is dropped once nothing wants it any more.
func (sm *StreamMan) Unload(path string, start posfloat.PosFloat) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := streamKey{path, start}
	pc, ok := sm.points[key]
	if !ok {
		return
	}
	pc.desiredCount--
	if pc.desiredCount <= 0 {
		delete(sm.points, key)
	}
}

// UnloadAll drops every streaming point cache unconditionally.
func (sm *StreamMan) UnloadAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.points = make(map[streamKey]*pointCache)
}

// IsReady reports whether (path, start) has at least one decoded
// instance ready to hand out.
func (sm *StreamMan) IsReady(path string, start posfloat.PosFloat) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	pc, ok := sm.points[streamKey{path, start}]
	if !ok {
		return false
	}
	sm.checkLoading(pc)
	return sm.peekReady(pc) != nil
}

// GetSound hands out one ready decoder instance for (path, start): a
// clone of the shared parent if the format is cloneable, or one of the
// independently-loaded instances otherwise — which is then removed
// from the pool and replaced by a fresh background load, so the next
// caller isn't starved.
func (sm *StreamMan) GetSound(path string, start posfloat.PosFloat) (sound.FormattedSoundStream, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := streamKey{path, start}
	pc, ok := sm.points[key]
	if !ok {
		return sound.Empty(), false
	}
	sm.checkLoading(pc)

	if pc.canClone != nil && *pc.canClone {
		if pc.cloneSource == nil || pc.cloneSource.state != instLoaded {
			return sound.Empty(), false
		}
		return pc.cloneSource.stream.AttemptClone(), true
	}

	for i, inst := range pc.instances {
		if inst.state == instLoaded {
			pc.instances = append(pc.instances[:i], pc.instances[i+1:]...)
			sm.loadOneMore(key, pc)
			return inst.stream, true
		}
	}
	return sound.Empty(), false
}

// checkLoading drains every outstanding instance's load channel
// without blocking, and classifies the point cache as cloneable or not
// the first time any instance finishes.
func (sm *StreamMan) checkLoading(pc *pointCache) {
	for _, inst := range pc.instances {
		if inst.state != instLoading {
			continue
		}
		select {
		case s := <-inst.ch:
			inst.state = instLoaded
			inst.stream = s
			if pc.canClone == nil {
				clonable := s.CanBeCloned()
				pc.canClone = &clonable
				if clonable {
					pc.cloneSource = inst
				}
			}
		default:
		}
	}
}

func (sm *StreamMan) peekReady(pc *pointCache) *cachedStream {
	if pc.canClone != nil && *pc.canClone {
		if pc.cloneSource != nil && pc.cloneSource.state == instLoaded {
			return pc.cloneSource
		}
		return nil
	}
	for _, inst := range pc.instances {
		if inst.state == instLoaded {
			return inst
		}
	}
	return nil
}

// loadOneMore spawns a background decode for key unless the point is
// already known-cloneable (one parent instance is always enough) or
// already has desiredCount ready-or-loading independent instances.
func (sm *StreamMan) loadOneMore(key streamKey, pc *pointCache) {
	if pc.canClone != nil && *pc.canClone {
		if pc.cloneSource != nil {
			return
		}
	} else if pc.canClone == nil && len(pc.instances) > 0 {
		// first instance still loading; wait to learn cloneability
		// before deciding whether more are needed.
		return
	} else if len(pc.instances) >= pc.desiredCount {
		return
	}

	ch := make(chan sound.FormattedSoundStream, 1)
	inst := &cachedStream{state: instLoading, ch: ch}
	pc.instances = append(pc.instances, inst)
	delegate, path, start := sm.delegate, key.path, key.start
	sm.runtime.Spawn(taskrt.StreamLoad, func() {
		ch <- loadStream(delegate, path, start)
	})
}

// loadStream opens path and advances it to start, seeking directly
// when the decoder supports it and falling back to a precise sample
// skip for the residual (or the whole distance, for decoders that
// can't seek at all) — grounded on stream.rs's live load_stream.
func loadStream(delegate sound.SoundDelegate, path string, start posfloat.PosFloat) sound.FormattedSoundStream {
	stream, ok := delegate.OpenFile(path)
	if !ok {
		delegate.Warning(errors.Errorf("soundman: failed to open %q for streaming", path).Error())
		return sound.Empty()
	}
	frame := start.SecondsToFrames(stream.SampleRate)
	if frame == 0 {
		return stream
	}
	actual, ok := stream.Reader.Seek(frame)
	remainingFrames := frame
	if ok {
		remainingFrames = frame - actual
	}
	if remainingFrames > 0 {
		channels := uint64(stream.SpeakerLayout.NumChannels())
		stream.Reader.Skip(remainingFrames * channels)
	}
	return stream
}
