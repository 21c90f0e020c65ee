package capture

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"time"
)

// SyntheticSource generates frames procedurally. It stands in for a device
// in tests and on machines without capture hardware.
type SyntheticSource struct {
	width     int
	height    int
	frameRate int

	frames  atomic.Uint64
	latest  atomic.Pointer[image.NRGBA]
	done    chan struct{}
	stop    chan struct{}
	stopped atomic.Bool

	// EndAfter, when positive, ends the video track after that many frames,
	// simulating a user revoking screen sharing.
	EndAfter uint64
}

// NewSyntheticSource creates a synthetic source of the given geometry.
func NewSyntheticSource(width, height, frameRate int) *SyntheticSource {
	return &SyntheticSource{
		width:     width,
		height:    height,
		frameRate: frameRate,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Start begins frame generation.
func (s *SyntheticSource) Start(ctx context.Context) error {
	go s.loop(ctx)
	return nil
}

func (s *SyntheticSource) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(time.Second / time.Duration(s.frameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			n := s.frames.Add(1)
			s.latest.Store(s.render(n))
			if s.EndAfter > 0 && n >= s.EndAfter {
				return
			}
		}
	}
}

// render produces a frame whose color varies with the frame counter, so
// consumers can tell frames apart.
func (s *SyntheticSource) render(n uint64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	c := color.NRGBA{R: uint8(n * 7), G: uint8(n * 13), B: uint8(n * 29), A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// Latest returns the most recent frame, or nil before the first tick.
func (s *SyntheticSource) Latest() *image.NRGBA {
	return s.latest.Load()
}

// Size returns the frame geometry.
func (s *SyntheticSource) Size() image.Point {
	return image.Point{X: s.width, Y: s.height}
}

// FrameRate returns the configured rate.
func (s *SyntheticSource) FrameRate() int {
	return s.frameRate
}

// Done is closed when the track ends.
func (s *SyntheticSource) Done() <-chan struct{} {
	return s.done
}

// Stop ends frame generation. Idempotent.
func (s *SyntheticSource) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stop)
	}
}
