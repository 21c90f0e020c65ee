package render

import (
	"context"
	"image/color"
	"testing"

	"clip-studio/internal/background"
	"clip-studio/internal/progress"
	"clip-studio/internal/timeline"
)

func preparedParams(t *testing.T, job *Job) *params {
	t.Helper()
	p, err := prepare(context.Background(), job, progress.NewReporter(nil))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCanvasFillsMatchingAspect(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Width, job.Height = 64, 36 // same 16:9 aspect as the source
	p := preparedParams(t, job)

	red := color.NRGBA{R: 200, G: 10, B: 10, A: 255}
	out := newCanvas(p).compose(solidFrame(p.info.Width, p.info.Height, red))

	// No letterboxing: the frame covers the whole canvas, corners included.
	for _, pt := range []struct{ x, y int }{{0, 0}, {63, 0}, {0, 35}, {63, 35}, {32, 18}} {
		if got := out.NRGBAAt(pt.x, pt.y); got != red {
			t.Errorf("pixel (%d,%d) = %v, want frame color %v", pt.x, pt.y, got, red)
		}
	}
}

func TestCanvasLetterboxesAtDestRect(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Width, job.Height = 64, 64 // square canvas, 16:9 source
	p := preparedParams(t, job)

	red := color.NRGBA{R: 200, G: 10, B: 10, A: 255}
	out := newCanvas(p).compose(solidFrame(p.info.Width, p.info.Height, red))

	black := color.NRGBA{A: 255}
	if got := out.NRGBAAt(0, 0); got != black {
		t.Errorf("letterbox pixel = %v, want black", got)
	}
	dr := p.layout.DestRect
	cx, cy := dr.Min.X+dr.Dx()/2, dr.Min.Y+dr.Dy()/2
	if got := out.NRGBAAt(cx, cy); got != red {
		t.Errorf("frame pixel = %v, want %v", got, red)
	}
	if got := out.NRGBAAt(cx, dr.Min.Y-2); got != black {
		t.Errorf("pixel above DestRect = %v, want black", got)
	}
}

func TestCanvasUsesBackgroundColor(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Width, job.Height = 64, 64
	blue := color.NRGBA{B: 180, A: 255}
	job.Background = background.Solid(blue)
	p := preparedParams(t, job)

	out := newCanvas(p).compose(solidFrame(p.info.Width, p.info.Height, color.NRGBA{R: 255, A: 255}))
	if got := out.NRGBAAt(0, 0); got != blue {
		t.Errorf("background pixel = %v, want %v", got, blue)
	}
}
