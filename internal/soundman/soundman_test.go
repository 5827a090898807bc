package soundman

import (
	"testing"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
	"github.com/cbegin/secondmusic-go/internal/taskrt"
)

func TestSoundManResolvesDeferredEndForBuffer(t *testing.T) {
	d := newFakeDelegate()
	// sample rate 1000 in fakeDelegate; 2000 samples => 2s.
	data := make([]float32, 2000)
	d.files["a.wav"] = data
	sm := NewSoundMan(d, taskrt.Foreground{})

	snd := &soundtrack.Sound{Name: "a", Path: "a.wav", Start: posfloat.Zero, End: soundtrack.Unresolved()}
	sm.Load(snd)
	if _, ok := sm.GetSound(snd); !ok {
		t.Fatal("expected GetSound to succeed")
	}
	end, resolved := snd.End.Get()
	if !resolved {
		t.Fatal("expected End to be resolved after GetSound")
	}
	if end.Compare(posfloat.MustNew(2)) != 0 {
		t.Fatalf("got end %v, want 2s", end)
	}
}

func TestSoundManResolvesDeferredEndForStream(t *testing.T) {
	d := newFakeDelegate()
	data := make([]float32, 3000)
	d.files["a.ogg"] = data
	sm := NewSoundMan(d, taskrt.Foreground{})

	start := posfloat.MustNew(1)
	snd := &soundtrack.Sound{Name: "a", Path: "a.ogg", Start: start, End: soundtrack.Unresolved(), Stream: true}
	sm.Load(snd)
	if _, ok := sm.GetSound(snd); !ok {
		t.Fatal("expected GetSound to succeed")
	}
	end, resolved := snd.End.Get()
	if !resolved {
		t.Fatal("expected End to be resolved after GetSound")
	}
	// 3000 samples at 1000Hz is a 3s file, so End resolves to 3s absolute
	// whatever the 1s start.
	if end.Compare(posfloat.MustNew(3)) != 0 {
		t.Fatalf("got end %v, want 3s", end)
	}
}

func TestSoundManLeavesExplicitEndAlone(t *testing.T) {
	d := newFakeDelegate()
	d.files["a.wav"] = []float32{1, 2, 3}
	sm := NewSoundMan(d, taskrt.Foreground{})

	want := posfloat.MustNew(0.5)
	snd := &soundtrack.Sound{Name: "a", Path: "a.wav", Start: posfloat.Zero, End: soundtrack.Resolved(want)}
	sm.Load(snd)
	sm.GetSound(snd)
	got, _ := snd.End.Get()
	if got.Compare(want) != 0 {
		t.Fatalf("explicit End should be untouched, got %v want %v", got, want)
	}
}

func TestSoundManWarnsOnMixedKindRequest(t *testing.T) {
	d := newFakeDelegate()
	d.files["a.wav"] = []float32{1}
	sm := NewSoundMan(d, taskrt.Foreground{})

	buffered := &soundtrack.Sound{Name: "a", Path: "a.wav", End: soundtrack.Unresolved()}
	streamed := &soundtrack.Sound{Name: "a", Path: "a.wav", End: soundtrack.Unresolved(), Stream: true}
	sm.Load(buffered)
	sm.Load(streamed)

	if len(d.warnings) == 0 {
		t.Fatal("expected a warning about mixed stream/buffer use of the same name")
	}
}

func TestSoundManUnloadAllClearsState(t *testing.T) {
	d := newFakeDelegate()
	d.files["a.wav"] = []float32{1}
	sm := NewSoundMan(d, taskrt.Foreground{})

	snd := &soundtrack.Sound{Name: "a", Path: "a.wav", End: soundtrack.Unresolved()}
	sm.Load(snd)
	sm.UnloadAll()
	if sm.IsReady(snd) {
		t.Fatal("expected IsReady to be false after UnloadAll")
	}
}
