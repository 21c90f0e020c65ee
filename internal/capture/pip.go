package capture

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

const (
	// pipFraction is the width of the camera overlay relative to the base
	// frame.
	pipFraction = 0.25

	// pipMargin keeps the overlay off the frame edges, in pixels.
	pipMargin = 16
)

// overlayPIP draws the camera frame over the bottom-right corner of the base
// frame, scaled to a quarter of the base width. The base is never mutated; a
// nil camera frame returns it unchanged.
func overlayPIP(base *image.NRGBA, cam *image.NRGBA) *image.NRGBA {
	if cam == nil {
		return base
	}

	w := int(float64(base.Bounds().Dx()) * pipFraction)
	if w < 2 {
		w = 2
	}
	small := imaging.Resize(cam, w, 0, imaging.Linear)

	bb := base.Bounds()
	sb := small.Bounds()
	offset := image.Point{
		X: bb.Max.X - sb.Dx() - pipMargin,
		Y: bb.Max.Y - sb.Dy() - pipMargin,
	}
	if offset.X < bb.Min.X {
		offset.X = bb.Min.X
	}
	if offset.Y < bb.Min.Y {
		offset.Y = bb.Min.Y
	}

	out := imaging.Clone(base)
	dst := image.Rectangle{Min: offset, Max: offset.Add(image.Point{X: sb.Dx(), Y: sb.Dy()})}
	draw.Draw(out, dst, small, image.Point{}, draw.Over)
	return out
}
