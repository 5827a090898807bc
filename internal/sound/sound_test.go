package sound

import "testing"

type sliceReader struct {
	data   []int16
	cursor int
}

func (r *sliceReader) Read(buf []int16) int {
	n := copy(buf, r.data[r.cursor:])
	r.cursor += n
	return n
}
func (r *sliceReader) Seek(frame uint64) (uint64, bool) {
	if int(frame) > len(r.data) {
		return 0, false
	}
	r.cursor = int(frame)
	return frame, true
}
func (r *sliceReader) SkipCoarse(count uint64, scratch []int16) uint64 { return 0 }
func (r *sliceReader) SkipPrecise(count uint64, scratch []int16) bool {
	return DefaultSkipPrecise[int16](r, count, scratch)
}
func (r *sliceReader) CanBeCloned() bool                  { return false }
func (r *sliceReader) AttemptClone() SoundReader[int16]   { panic("not cloneable") }
func (r *sliceReader) EstimateLen() (uint64, bool)        { return uint64(len(r.data)), true }

func TestReadFloatNormalizesI16(t *testing.T) {
	r := NewI16Reader(&sliceReader{data: []int16{32767, -32768, 0}})
	buf := make([]float32, 3)
	n := r.ReadFloat(buf)
	if n != 3 {
		t.Fatalf("got %d samples, want 3", n)
	}
	if buf[2] != 0 {
		t.Fatalf("zero sample should normalize to 0, got %v", buf[2])
	}
	if buf[0] <= 0.9 || buf[0] > 1.0 {
		t.Fatalf("max positive sample should be near 1.0, got %v", buf[0])
	}
	if buf[1] >= -0.9 || buf[1] < -1.0 {
		t.Fatalf("max negative sample should be near -1.0, got %v", buf[1])
	}
}

func TestDefaultSkipPreciseFallsBackToRead(t *testing.T) {
	r := &sliceReader{data: []int16{1, 2, 3, 4, 5}}
	ok := r.SkipPrecise(3, make([]int16, 2))
	if !ok {
		t.Fatal("expected skip to succeed with data remaining")
	}
	if r.cursor != 3 {
		t.Fatalf("cursor = %d, want 3", r.cursor)
	}
}

func TestEmptyStreamReadsZero(t *testing.T) {
	s := Empty()
	buf := make([]float32, 4)
	if n := s.Reader.ReadFloat(buf); n != 0 {
		t.Fatalf("got %d, want 0", n)
	}
}

func TestSpeakerLayoutChannelCounts(t *testing.T) {
	cases := map[SpeakerLayout]int{
		Mono: 1, Stereo: 2, Headphones: 2, Quadraphonic: 4, Surround51: 6, Surround71: 8,
	}
	for layout, want := range cases {
		if got := layout.NumChannels(); got != want {
			t.Fatalf("%v.NumChannels() = %d, want %d", layout, got, want)
		}
	}
}
