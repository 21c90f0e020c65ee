package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"clip-studio/internal/background"
	"clip-studio/internal/logging"
	"clip-studio/internal/progress"
)

const (
	// DefaultWidth and DefaultHeight size the output surface.
	DefaultWidth  = 1920
	DefaultHeight = 1080

	// DefaultRefreshRate is the draw loop frequency in ticks per second.
	DefaultRefreshRate = 30

	// PaddingFraction is the share of the canvas left free on each side of
	// the centered video layer.
	PaddingFraction = 0.10

	// CornerRadius is the rounded-corner clip radius for the video layer,
	// in canvas pixels.
	CornerRadius = 24

	// WarmUpDelay is how long the surface runs before its output is
	// treated as live. The surface needs several refresh ticks to reach a
	// stable, non-empty state.
	WarmUpDelay = 300 * time.Millisecond
)

// FrameFunc receives every composited frame together with the tick time.
type FrameFunc func(frame *image.NRGBA, at time.Time)

// Surface composites a background beneath the live input video on a fixed
// size canvas, redrawn on every refresh tick. The continuous redraw doubles
// as the capture heartbeat: it runs even when the content is static, so the
// host never suspends the recording as idle.
type Surface struct {
	size    image.Point
	refresh time.Duration

	base   *image.NRGBA // pre-rendered background layer
	mask   *image.Alpha // rounded-corner clip, rebuilt when frame size changes
	maskSz image.Point

	inputMu sync.RWMutex
	input   func() image.Image

	onFrame FrameFunc

	running atomic.Bool
	paused  atomic.Bool
	ticks   atomic.Uint64
	done    chan struct{}

	latest atomic.Pointer[image.NRGBA]
}

// New builds a surface over the given background. A nil background yields a
// black canvas. Width/height fall back to the 1920x1080 default and the
// refresh rate to 30 ticks per second.
func New(width, height, refreshRate int, bg *background.Background) *Surface {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}

	s := &Surface{
		size:    image.Point{X: width, Y: height},
		refresh: time.Second / time.Duration(refreshRate),
		done:    make(chan struct{}),
	}
	s.base = renderBase(s.size, bg)
	return s
}

// Size returns the surface dimensions.
func (s *Surface) Size() image.Point {
	return s.size
}

// SetInput installs the provider of the latest live video frame. The
// provider may return nil while no frame is available yet.
func (s *Surface) SetInput(fn func() image.Image) {
	s.inputMu.Lock()
	s.input = fn
	s.inputMu.Unlock()
}

// SetOnFrame installs the composited-frame subscriber. Must be called
// before Start.
func (s *Surface) SetOnFrame(fn FrameFunc) {
	s.onFrame = fn
}

// Start launches the draw loop. It is a no-op when already running.
func (s *Surface) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

// WaitLive blocks through the warm-up delay and verifies the surface
// reached a live state: the draw loop must have produced frames. It fails
// with ErrCompositorInit otherwise.
func (s *Surface) WaitLive(ctx context.Context) error {
	select {
	case <-time.After(WarmUpDelay):
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", progress.ErrCompositorInit, ctx.Err())
	}

	if !s.running.Load() || s.ticks.Load() == 0 || s.latest.Load() == nil {
		return fmt.Errorf("%w: surface produced no frames after warm-up", progress.ErrCompositorInit)
	}
	return nil
}

// Pause suspends the draw loop without stopping it. The last composited
// frame stays current while paused.
func (s *Surface) Pause() {
	s.paused.Store(true)
}

// Resume restarts a paused draw loop.
func (s *Surface) Resume() {
	s.paused.Store(false)
}

// Stop terminates the draw loop. Idempotent.
func (s *Surface) Stop() {
	if s.running.CompareAndSwap(true, false) {
		close(s.done)
	}
}

// Latest returns the most recent composited frame, or nil before the first
// tick.
func (s *Surface) Latest() *image.NRGBA {
	return s.latest.Load()
}

// Ticks returns the number of completed draw ticks.
func (s *Surface) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *Surface) loop() {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	logging.Debug("Compositor draw loop started: %dx%d @ %v", s.size.X, s.size.Y, s.refresh)

	for {
		select {
		case <-s.done:
			logging.Debug("Compositor draw loop stopped after %d ticks", s.ticks.Load())
			return
		case now := <-ticker.C:
			if s.paused.Load() {
				continue
			}
			frame := s.Compose(s.currentInput())
			s.latest.Store(frame)
			s.ticks.Add(1)
			if s.onFrame != nil {
				s.onFrame(frame, now)
			}
		}
	}
}

func (s *Surface) currentInput() image.Image {
	s.inputMu.RLock()
	fn := s.input
	s.inputMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// Compose draws one output frame: the pre-rendered background with the
// input frame scaled into the padded center box, aspect preserved, clipped
// to rounded corners. A nil input yields the bare background.
func (s *Surface) Compose(src image.Image) *image.NRGBA {
	canvas := imaging.Clone(s.base)
	if src == nil {
		return canvas
	}

	boxW := int(float64(s.size.X) * (1 - 2*PaddingFraction))
	boxH := int(float64(s.size.Y) * (1 - 2*PaddingFraction))
	fitted := imaging.Fit(src, boxW, boxH, imaging.Linear)

	fw, fh := fitted.Bounds().Dx(), fitted.Bounds().Dy()
	offset := image.Point{X: (s.size.X - fw) / 2, Y: (s.size.Y - fh) / 2}

	mask := s.roundedMask(fw, fh)
	dst := image.Rectangle{Min: offset, Max: offset.Add(image.Point{X: fw, Y: fh})}
	draw.DrawMask(canvas, dst, fitted, image.Point{}, mask, image.Point{}, draw.Over)
	return canvas
}

// roundedMask returns an alpha mask with rounded corners for a w x h frame.
// The mask is cached until the frame size changes.
func (s *Surface) roundedMask(w, h int) *image.Alpha {
	if s.mask != nil && s.maskSz == (image.Point{X: w, Y: h}) {
		return s.mask
	}

	r := CornerRadius
	if m := minInt(w, h) / 2; r > m {
		r = m
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if insideRounded(x, y, w, h, r) {
				mask.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}

	s.mask = mask
	s.maskSz = image.Point{X: w, Y: h}
	return mask
}

// insideRounded reports whether the pixel lies inside the rounded rect.
func insideRounded(x, y, w, h, r int) bool {
	cx, cy := x, y
	switch {
	case x < r && y < r:
		cx, cy = r-1, r-1
	case x >= w-r && y < r:
		cx, cy = w-r, r-1
	case x < r && y >= h-r:
		cx, cy = r-1, h-r
	case x >= w-r && y >= h-r:
		cx, cy = w-r, h-r
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// renderBase pre-renders the background layer once: a flat color fill, or
// the background image cover-cropped to the surface.
func renderBase(size image.Point, bg *background.Background) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if bg == nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)
		return canvas
	}

	if bg.IsImage() {
		cover := imaging.Fill(bg.Image, size.X, size.Y, imaging.Center, imaging.Linear)
		draw.Draw(canvas, canvas.Bounds(), cover, image.Point{}, draw.Src)
		return canvas
	}

	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg.Color), image.Point{}, draw.Src)
	return canvas
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
