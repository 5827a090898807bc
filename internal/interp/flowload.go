package interp

import "github.com/cbegin/secondmusic-go/internal/soundtrack"

// soundLoader is the subset of soundman.SoundMan a FlowLoadStatus
// needs; satisfied by *soundman.SoundMan. Kept as an interface here
// so interp has no import of soundman (the dependency runs the other
// way: engine.go wires soundman into interp, not vice versa).
type soundLoader interface {
	Load(snd *soundtrack.Sound)
	Unload(snd *soundtrack.Sound)
	IsReady(snd *soundtrack.Sound) bool
}

// FlowLoadStatus tracks why, and whether, a Flow's sounds are loaded:
// a Flow can be wanted because it's precached, because it's actively
// playing (or about to), both, or neither. Grounded on engine.rs's
// FlowLoadStatus.
type FlowLoadStatus struct {
	// KnownAllReady caches a true answer from IsReady, since once every
	// known sound has reported ready it can never become un-ready.
	KnownAllReady bool
	// Precaching is true while a Precache command is outstanding for
	// this flow, independent of whether it's actually playing.
	Precaching bool
	// ActiveLoading is true while this flow is queued to start or is
	// currently playing.
	ActiveLoading bool
	// LoadRequested is true once Load has been called on every
	// KnownSound and not yet undone by MaybeUnload.
	LoadRequested bool
	// KnownSounds is every Sound this flow's nodes and sequences
	// directly or indirectly reference (soundtrack.FindAllSounds).
	KnownSounds []*soundtrack.Sound
}

func (f *FlowLoadStatus) shouldBeLoaded() bool {
	return f.Precaching || f.ActiveLoading
}

// IsReady reports whether every sound this flow needs can be opened
// without blocking.
func (f *FlowLoadStatus) IsReady(sm soundLoader) bool {
	if f.KnownAllReady {
		return true
	}
	for _, s := range f.KnownSounds {
		if !sm.IsReady(s) {
			return false
		}
	}
	f.KnownAllReady = true
	return true
}

// MaybeUnload releases this flow's sounds if they were loaded and are
// no longer wanted by either precaching or active play.
func (f *FlowLoadStatus) MaybeUnload(sm soundLoader) {
	if !f.LoadRequested || f.shouldBeLoaded() {
		return
	}
	for _, s := range f.KnownSounds {
		sm.Unload(s)
	}
	f.LoadRequested = false
	f.KnownAllReady = false
}

// MaybeLoad requests this flow's sounds if they're wanted and not
// already loaded.
func (f *FlowLoadStatus) MaybeLoad(sm soundLoader) {
	if f.LoadRequested || !f.shouldBeLoaded() {
		return
	}
	for _, s := range f.KnownSounds {
		sm.Load(s)
	}
	f.LoadRequested = true
}

// ForceUnload clears both reasons this flow could be wanted, then
// unloads it regardless of outstanding state. Used when a soundtrack
// swap drops a flow entirely.
func (f *FlowLoadStatus) ForceUnload(sm soundLoader) {
	f.Precaching = false
	f.ActiveLoading = false
	f.MaybeUnload(sm)
}
