package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"clip-studio/internal/background"
	"clip-studio/internal/compositor"
	"clip-studio/internal/encoder"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/metrics"
	"clip-studio/internal/progress"
)

// State is the capture session lifecycle state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota
	// StateStarting means a Start call is in flight.
	StateStarting
	// StateRecording means a session is actively capturing.
	StateRecording
	// StateRecorded means a finished recording is available.
	StateRecorded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateRecorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// Config carries the capture geometry and compositor settings.
type Config struct {
	Width       int
	Height      int
	FrameRate   int
	SurfaceW    int
	SurfaceH    int
	RefreshRate int
}

// Deps are the device and encoder factories. Production code uses the
// defaults; tests substitute synthetic implementations.
type Deps struct {
	NewScreen  func(w, h, fps int) Source
	NewCamera  func(w, h, fps int) Source
	NewMic     func() (audioInput, error)
	NewPrimary func() (audioInput, error)
	NewSink    func(opts encoder.Options, onChunk encoder.ChunkFunc) EncoderSink
	Supported  func(ctx context.Context) map[string]bool
	HTTPClient *http.Client
}

func defaultDeps() Deps {
	return Deps{
		NewScreen: NewScreenSource,
		NewCamera: NewCameraSource,
		NewMic: func() (audioInput, error) {
			return NewAudioCapture()
		},
		NewPrimary: func() (audioInput, error) {
			return NewAudioCapture()
		},
		NewSink: func(opts encoder.Options, onChunk encoder.ChunkFunc) EncoderSink {
			return encoder.NewSink(opts, onChunk)
		},
		Supported: encoder.SupportedEncoders,
	}
}

// Controller owns the capture session lifecycle. At most one session exists
// at a time; the owned *Session handle enforces the invariant.
type Controller struct {
	cfg  Config
	deps Deps

	mu        sync.Mutex
	state     State
	starting  bool // re-entry guard for in-flight Start
	session   *Session
	recording *Recording
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	return NewControllerWithDeps(cfg, defaultDeps())
}

// NewControllerWithDeps creates a controller with explicit factories.
func NewControllerWithDeps(cfg Config, deps Deps) *Controller {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1920, 1080
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.SurfaceW <= 0 || cfg.SurfaceH <= 0 {
		cfg.SurfaceW, cfg.SurfaceH = compositor.DefaultWidth, compositor.DefaultHeight
	}
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = compositor.DefaultRefreshRate
	}
	return &Controller{cfg: cfg, deps: deps}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording returns the finished recording, when one exists.
func (c *Controller) Recording() *Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Start acquires devices and begins recording. A second Start while one is
// in flight or while a session is active is a logged no-op, not an error.
// On failure every acquired resource is released and the controller returns
// to idle.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	c.mu.Lock()
	if c.starting || c.session != nil {
		c.mu.Unlock()
		logging.Info("Start ignored: a capture session is already %s", c.state)
		return nil
	}
	c.starting = true
	c.state = StateStarting
	c.mu.Unlock()

	session, err := c.buildSession(ctx, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		c.state = StateIdle
		metrics.CaptureSessionsTotal.WithLabelValues("error").Inc()
		return err
	}
	c.session = session
	c.state = StateRecording
	metrics.CaptureSessionsTotal.WithLabelValues("started").Inc()
	return nil
}

// buildSession does the actual acquisition work outside the controller
// lock, so a concurrent Start can observe the guard instead of blocking.
func (c *Controller) buildSession(ctx context.Context, opts Options) (*Session, error) {
	sessCtx, cancel := context.WithCancel(context.Background())
	s := newSession(cancel)

	fail := func(err error) (*Session, error) {
		s.Close(true)
		return nil, err
	}

	// Primary video source.
	if opts.Camera {
		s.source = c.deps.NewCamera(c.cfg.Width, c.cfg.Height, c.cfg.FrameRate)
	} else {
		s.source = c.deps.NewScreen(c.cfg.Width, c.cfg.Height, c.cfg.FrameRate)
	}
	if err := s.source.Start(sessCtx); err != nil {
		return fail(err)
	}

	// Picture-in-picture camera on top of the screen stream. Like audio,
	// a recoverable camera failure degrades to screen-only.
	if opts.PIP && !opts.Camera {
		cam := c.deps.NewCamera(c.cfg.Width, c.cfg.Height, c.cfg.FrameRate)
		switch err := cam.Start(sessCtx); {
		case err == nil:
			s.pip = cam
		case recoverableDevice(err):
			cam.Stop()
			logging.Warn("Camera overlay unavailable (%v), recording screen only", err)
		default:
			cam.Stop()
			return fail(err)
		}
	}

	// Joint audio acquisition, degrading to video-only for recoverable
	// causes. Errors outside the recoverable set abort the session.
	if opts.Audio {
		in, err := c.deps.NewPrimary()
		if err == nil {
			err = in.Start()
			if err != nil {
				in.Stop()
			}
		}
		switch {
		case err == nil:
			s.primaryAudio = in
		case recoverableDevice(err):
			logging.Warn("Audio-inclusive capture failed (%v), continuing video-only", err)
		default:
			return fail(err)
		}
	}

	// Microphone mixing is best-effort: failures never block recording.
	if opts.AudioMixing {
		mic, err := c.deps.NewMic()
		if err == nil {
			if err = mic.Start(); err != nil {
				mic.Stop()
			}
		}
		if err != nil {
			logging.Warn("Audio mixing unavailable (%v), recording unmixed audio", err)
		} else {
			s.mic = mic
		}
	}

	// Background compositing. An explicitly requested background that
	// cannot be loaded aborts the session rather than recording without it.
	var frameW, frameH = c.cfg.Width, c.cfg.Height
	if opts.HasBackground() {
		bg, err := c.loadBackground(ctx, opts)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", progress.ErrCompositorInit, err))
		}
		surface := compositor.New(c.cfg.SurfaceW, c.cfg.SurfaceH, c.cfg.RefreshRate, bg)
		s.surface = surface
		frameW, frameH = surface.Size().X, surface.Size().Y
	}

	// Encoder sink: best mutually supported codec pairing.
	hasAudio := s.primaryAudio != nil || s.mic != nil
	pair := encoder.SelectCodecs(c.deps.Supported(ctx), hasAudio)
	format := encoder.ContainerFor(pair)

	sink := c.deps.NewSink(encoder.Options{
		Width:     frameW,
		Height:    frameH,
		FrameRate: frameRateFor(c.cfg, s.surface),
		Format:    format,
		Codecs:    pair,
		HasAudio:  hasAudio,
	}, s.appendChunk)
	if err := sink.Start(sessCtx); err != nil {
		return fail(err)
	}
	s.sink = sink
	s.mimeType = format.MimeType()

	// Wire the frame path: composited surface output, or the raw stream.
	if s.surface != nil {
		src, pip := s.source, s.pip
		s.surface.SetInput(func() image.Image {
			f := src.Latest()
			if f == nil {
				return nil
			}
			if pip != nil {
				f = overlayPIP(f, pip.Latest())
			}
			return f
		})
		s.surface.SetOnFrame(func(frame *image.NRGBA, _ time.Time) {
			if err := s.sink.WriteFrame(frame); err != nil {
				logging.Warn("composited frame write: %v", err)
			}
		})
		s.surface.Start()
		if err := s.surface.WaitLive(ctx); err != nil {
			return fail(err)
		}
	} else {
		s.startRawPump()
	}
	s.startAudioPump()

	// Auto-stop when the primary track ends (e.g. sharing revoked).
	go func() {
		select {
		case <-s.source.Done():
			logging.Info("Primary video track ended, stopping session")
			if _, err := c.Stop(); err != nil {
				logging.Error("Auto-stop failed: %v", err)
			}
		case <-sessCtx.Done():
		}
	}()

	return s, nil
}

func (c *Controller) loadBackground(ctx context.Context, opts Options) (*background.Background, error) {
	if opts.BackgroundImageURL != "" {
		return background.FetchImage(ctx, c.deps.HTTPClient, opts.BackgroundImageURL)
	}
	col, err := background.ParseColor(opts.BackgroundColor)
	if err != nil {
		return nil, err
	}
	return background.Solid(col), nil
}

// Stop finishes the active session and assembles the recording. It is
// idempotent: stopping while not recording is a no-op.
func (c *Controller) Stop() (*Recording, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		rec := c.recording
		c.mu.Unlock()
		return rec, nil
	}
	c.session = nil
	c.mu.Unlock()

	// Ordering: stop feeding first, flush the encoder, then release the
	// remaining resources together.
	s.stopPumps()
	if s.surface != nil {
		s.surface.Stop()
	}
	finishErr := s.sink.Finish()
	s.Close(false)

	data, count := s.assemble()

	c.mu.Lock()
	defer c.mu.Unlock()

	if finishErr != nil {
		c.state = StateIdle
		metrics.CaptureSessionsTotal.WithLabelValues("error").Inc()
		return nil, finishErr
	}
	if count == 0 {
		c.state = StateIdle
		metrics.CaptureSessionsTotal.WithLabelValues("empty").Inc()
		return nil, progress.ErrNoDataCaptured
	}
	if len(data) == 0 {
		c.state = StateIdle
		metrics.CaptureSessionsTotal.WithLabelValues("empty").Inc()
		return nil, progress.ErrEmptyResult
	}

	c.recording = &Recording{Data: data, MimeType: s.mimeType}
	c.state = StateRecorded
	metrics.CaptureSessionsTotal.WithLabelValues("completed").Inc()
	metrics.CaptureRecordingBytes.Observe(float64(len(data)))
	logging.Info("Recording assembled: %d chunks, %d bytes (%s)", count, len(data), s.mimeType)
	return c.recording, nil
}

// Reset releases everything and returns to idle, discarding any recording.
func (c *Controller) Reset() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.recording = nil
	c.state = StateIdle
	c.mu.Unlock()

	if s != nil {
		s.Close(true)
	}
}

// Load discards any active session and installs an existing recording for
// playback, without performing a capture.
func (c *Controller) Load(data []byte, mimeType string) error {
	if len(data) == 0 {
		return progress.ErrEmptyResult
	}
	if _, ok := mediatypes.FormatForMime(mimeType); !ok {
		return fmt.Errorf("unsupported media type %q", mimeType)
	}

	c.mu.Lock()
	s := c.session
	c.session = nil
	c.recording = &Recording{Data: data, MimeType: mimeType}
	c.state = StateRecorded
	c.mu.Unlock()

	if s != nil {
		s.Close(true)
	}
	return nil
}

// recoverableDevice reports whether a device failure should degrade the
// session (video-only audio, screen-only PIP) instead of aborting it.
func recoverableDevice(err error) bool {
	return errors.Is(err, progress.ErrPermissionDenied) ||
		errors.Is(err, progress.ErrDeviceNotFound) ||
		errors.Is(err, progress.ErrUnsupportedConfig)
}

func frameRateFor(cfg Config, surface *compositor.Surface) int {
	if surface != nil {
		return cfg.RefreshRate
	}
	return cfg.FrameRate
}
