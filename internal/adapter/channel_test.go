package adapter

import (
	"math"
	"testing"

	"github.com/cbegin/secondmusic-go/internal/sound"
)

func TestChannelAdapterIdentityReturnsInnerUnchanged(t *testing.T) {
	inner := &fixedReader{data: []float32{1, 2, 3}, channels: 1}
	got := NewChannelAdapter(inner, sound.Mono, sound.Mono)
	if got != sound.SoundReader[float32](inner) {
		t.Fatal("identity layout conversion should return the inner reader unchanged")
	}
}

func TestChannelAdapterStereoAliasIsIdentity(t *testing.T) {
	inner := &fixedReader{data: []float32{1, 2}, channels: 2}
	got := NewChannelAdapter(inner, sound.Stereo, sound.Headphones)
	if got != sound.SoundReader[float32](inner) {
		t.Fatal("Stereo<->Headphones should be treated as the same layout")
	}
}

func TestChannelAdapterMonoToStereoDuplicates(t *testing.T) {
	inner := &fixedReader{data: []float32{1, 2, 3, 4, 5}, channels: 1}
	ca := NewChannelAdapter(inner, sound.Mono, sound.Stereo)

	got := readAll(ca, 4)
	want := []float32{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, v := range got {
		if v != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, v, want[i])
		}
	}
}

func TestChannelAdapterStereoToMonoAverages(t *testing.T) {
	inner := &fixedReader{data: []float32{2, 4, 6, 8}, channels: 2}
	ca := NewChannelAdapter(inner, sound.Stereo, sound.Mono)

	got := readAll(ca, 16)
	want := []float32{3, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, v := range got {
		if v != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, v, want[i])
		}
	}
}

func TestChannelAdapterSurround51ToStereo(t *testing.T) {
	// one frame: fl=2, fr=2, c=2, lfe=99 (ignored), rl=2, rr=2
	inner := &fixedReader{data: []float32{2, 2, 2, 99, 2, 2}, channels: 6}
	ca := NewChannelAdapter(inner, sound.Surround51, sound.Stereo)

	got := readAll(ca, 16)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 samples", got)
	}
	// fl = (fl+rl+c*0.5) / 2.5 = (2+2+1)/2.5 = 2
	want := float32(2)
	const eps = 1e-5
	for i, v := range got {
		if math.Abs(float64(v-want)) > eps {
			t.Fatalf("sample %d: got %v want %v", i, v, want)
		}
	}
}

func TestChannelAdapterSurround71ToSurround51(t *testing.T) {
	inner := &fixedReader{data: []float32{1, 1, 1, 1, 1, 1, 1, 1}, channels: 8}
	ca := NewChannelAdapter(inner, sound.Surround71, sound.Surround51)

	got := readAll(ca, 16)
	if len(got) != 6 {
		t.Fatalf("got %d samples, want 6: %v", len(got), got)
	}
	// c = c * (1/1.5) = 0.667, lfe likewise
	const eps = 1e-4
	if math.Abs(float64(got[2]-2.0/3.0)) > eps {
		t.Fatalf("center channel: got %v want ~0.667", got[2])
	}
}
