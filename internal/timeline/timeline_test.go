package timeline

import (
	"math/rand"
	"testing"
)

func TestNewRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []float64{0, -1} {
		if _, err := New(d); err == nil {
			t.Errorf("New(%v) should fail", d)
		}
	}
}

func TestSplit(t *testing.T) {
	tl, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	if !tl.Split(4) {
		t.Fatal("Split(4) should succeed")
	}

	segs := tl.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 4 {
		t.Errorf("left segment = [%v,%v], want [0,4]", segs[0].Start, segs[0].End)
	}
	if segs[1].Start != 4 || segs[1].End != 10 {
		t.Errorf("right segment = [%v,%v], want [4,10]", segs[1].Start, segs[1].End)
	}
	if err := tl.Validate(); err != nil {
		t.Errorf("invariants violated after split: %v", err)
	}
}

func TestSplitOutsideSegmentIsNoop(t *testing.T) {
	tl, _ := New(10)
	tl.Split(4)
	segs := tl.Segments()
	tl.Delete(segs[0].ID) // leaves [4,10], gap [0,4)

	before := tl.Segments()
	for _, at := range []float64{2, 0, 10, 12, -1} {
		if tl.Split(at) {
			t.Errorf("Split(%v) in a gap or outside bounds should be a no-op", at)
		}
	}
	after := tl.Segments()
	if len(before) != len(after) {
		t.Error("segment set changed by no-op split")
	}
}

func TestSplitRejectsDegenerateHalves(t *testing.T) {
	tl, _ := New(10)
	if tl.Split(0.05) {
		t.Error("split producing a sub-minimum segment should be rejected")
	}
}

func TestTrimClamping(t *testing.T) {
	tl, _ := New(10)
	tl.Split(5)
	segs := tl.Segments()

	// Trim the first segment past its neighbor; end must clamp to 5.
	tl.Trim(segs[0].ID, -3, 7)
	got := tl.Segments()[0]
	if got.Start != 0 {
		t.Errorf("start = %v, want clamp to 0", got.Start)
	}
	if got.End != 5 {
		t.Errorf("end = %v, want clamp to neighbor start 5", got.End)
	}
	if err := tl.Validate(); err != nil {
		t.Errorf("invariants violated after trim: %v", err)
	}
}

func TestTrimPreservesMinimumWidth(t *testing.T) {
	tl, _ := New(10)
	id := tl.Segments()[0].ID

	tl.Trim(id, 3, 3)
	got := tl.Segments()[0]
	if got.Duration() < MinSegmentWidth {
		t.Errorf("segment degenerated to %v after trim", got.Duration())
	}
}

func TestDeleteKeepsLastSegment(t *testing.T) {
	tl, _ := New(10)
	id := tl.Segments()[0].ID

	if tl.Delete(id) {
		t.Error("deleting the last remaining segment must be a no-op")
	}
	if len(tl.Segments()) != 1 {
		t.Fatal("segment count reached zero")
	}

	tl.Split(5)
	segs := tl.Segments()
	if !tl.Delete(segs[1].ID) {
		t.Error("deleting one of two segments should succeed")
	}
	if len(tl.Segments()) != 1 {
		t.Errorf("expected 1 segment, got %d", len(tl.Segments()))
	}
}

func TestSeekClamp(t *testing.T) {
	tl, _ := New(10)
	tl.Split(2)
	tl.Split(6)
	segs := tl.Segments() // [0,2) [2,6) [6,10)
	tl.Delete(segs[1].ID) // gap in [2,6)

	tests := []struct {
		name string
		at   float64
		want float64
	}{
		{"inside first segment", 1, 1},
		{"inside gap snaps forward", 3, 6},
		{"inside last segment", 7, 7},
		{"past final segment wraps to first", 11, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tl.SeekClamp(tt.at); got != tt.want {
				t.Errorf("SeekClamp(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestInvariantsUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tl, _ := New(60)

	for i := 0; i < 500; i++ {
		segs := tl.Segments()
		pick := segs[rng.Intn(len(segs))]
		switch rng.Intn(3) {
		case 0:
			tl.Split(rng.Float64() * 60)
		case 1:
			tl.Trim(pick.ID, pick.Start+rng.Float64()*2-1, pick.End+rng.Float64()*2-1)
		case 2:
			tl.Delete(pick.ID)
		}
		if err := tl.Validate(); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if len(tl.Segments()) == 0 {
			t.Fatalf("iteration %d: segment count reached zero", i)
		}
	}
}

func TestTotalDurationWithGaps(t *testing.T) {
	tl, _ := New(9)
	tl.Split(2)
	tl.Split(5)
	tl.Split(7)
	segs := tl.Segments() // [0,2) [2,5) [5,7) [7,9)
	tl.Delete(segs[2].ID) // drop [5,7)

	if got := tl.TotalDuration(); got != 7 {
		t.Errorf("TotalDuration() = %v, want 7", got)
	}
}
