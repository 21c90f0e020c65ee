package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// canvas places decoded frames on the output background using the prepared
// layout: the crop window scaled into DestRect, everything else filled by the
// background layer. Placement matches the filtergraph renderer, so a job
// produces the same framing regardless of which renderer ran it.
type canvas struct {
	base       *image.NRGBA
	sourceRect image.Rectangle
	destRect   image.Rectangle
}

func newCanvas(p *params) *canvas {
	base := image.NewNRGBA(image.Rect(0, 0, p.canvasW, p.canvasH))
	switch bg := p.job.Background; {
	case bg == nil:
		draw.Draw(base, base.Bounds(), image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)
	case bg.IsImage():
		cover := imaging.Fill(bg.Image, p.canvasW, p.canvasH, imaging.Center, imaging.Linear)
		draw.Draw(base, base.Bounds(), cover, image.Point{}, draw.Src)
	default:
		draw.Draw(base, base.Bounds(), image.NewUniform(bg.Color), image.Point{}, draw.Src)
	}
	return &canvas{
		base:       base,
		sourceRect: p.layout.SourceRect,
		destRect:   p.layout.DestRect,
	}
}

// compose crops one decoded frame to the source window, scales the crop to
// the destination size and draws it at the destination offset.
func (c *canvas) compose(frame *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(c.base)
	scaled := imaging.Resize(frame.SubImage(c.sourceRect), c.destRect.Dx(), c.destRect.Dy(), imaging.Linear)
	draw.Draw(out, c.destRect, scaled, image.Point{}, draw.Over)
	return out
}
