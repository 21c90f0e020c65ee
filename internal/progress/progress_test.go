package progress

import (
	"errors"
	"fmt"
	"testing"
)

func TestReporterMonotonic(t *testing.T) {
	var got []float64
	r := NewReporter(func(f float64) { got = append(got, f) })

	r.Start()
	r.Report(0.5)
	r.Report(0.3) // regression, must be suppressed
	r.Report(0.8)
	r.Finish()

	want := []float64{0, 0.5, 0.5, 0.8, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d reports, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("report %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReporterClamps(t *testing.T) {
	r := NewReporter(nil)

	r.Report(-0.5)
	if r.Fraction() != 0 {
		t.Errorf("negative fraction not clamped: %v", r.Fraction())
	}

	r.Report(2.5)
	if r.Fraction() != 1 {
		t.Errorf("overlarge fraction not clamped: %v", r.Fraction())
	}
}

func TestReporterNilFunc(t *testing.T) {
	r := NewReporter(nil)
	r.Start()
	r.Report(0.5)
	r.Finish()

	if r.Fraction() != 1 {
		t.Errorf("Fraction() = %v, want 1", r.Fraction())
	}
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("%w: ffmpeg exited with code 1", ErrRenderFailed)
	if !errors.Is(err, ErrRenderFailed) {
		t.Error("wrapped sentinel not matched by errors.Is")
	}
	if errors.Is(err, ErrEncoding) {
		t.Error("unrelated sentinel matched")
	}
}
