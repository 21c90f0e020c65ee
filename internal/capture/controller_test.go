package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clip-studio/internal/encoder"
	"clip-studio/internal/progress"
)

// fakeSink emits one chunk per written frame so controller tests can assert
// chunk assembly without a real encoder process.
type fakeSink struct {
	onChunk encoder.ChunkFunc

	mu       sync.Mutex
	frames   int
	finished bool
	aborted  bool

	silent   bool // deliver no chunks at all
	emitZero bool // deliver zero-length chunks only
}

func (f *fakeSink) Start(_ context.Context) error { return nil }

func (f *fakeSink) WriteFrame(_ *image.NRGBA) error {
	f.mu.Lock()
	f.frames++
	n := f.frames
	f.mu.Unlock()

	if f.silent {
		return nil
	}
	if f.emitZero {
		f.onChunk(nil)
		return nil
	}
	f.onChunk([]byte(fmt.Sprintf("chunk-%03d;", n)))
	return nil
}

func (f *fakeSink) WriteAudio(_ []byte) error { return nil }

func (f *fakeSink) Finish() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return nil
}

func (f *fakeSink) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
}

type fakeAudioInput struct {
	ch      chan []byte
	stopped atomic.Bool
}

func newFakeAudioInput() *fakeAudioInput {
	return &fakeAudioInput{ch: make(chan []byte, 8)}
}

func (f *fakeAudioInput) Start() error          { return nil }
func (f *fakeAudioInput) Chunks() <-chan []byte { return f.ch }
func (f *fakeAudioInput) Stop()                 { f.stopped.Store(true) }

func testDeps(sink *fakeSink) Deps {
	return Deps{
		NewScreen: func(w, h, fps int) Source { return NewSyntheticSource(w, h, fps) },
		NewCamera: func(w, h, fps int) Source { return NewSyntheticSource(w, h, fps) },
		NewMic: func() (audioInput, error) {
			return newFakeAudioInput(), nil
		},
		NewPrimary: func() (audioInput, error) {
			return newFakeAudioInput(), nil
		},
		NewSink: func(_ encoder.Options, onChunk encoder.ChunkFunc) EncoderSink {
			sink.onChunk = onChunk
			return sink
		},
		Supported: func(_ context.Context) map[string]bool {
			return map[string]bool{"libvpx-vp9": true, "libopus": true}
		},
	}
}

func testConfig() Config {
	return Config{Width: 64, Height: 36, FrameRate: 60, SurfaceW: 64, SurfaceH: 36, RefreshRate: 60}
}

func TestStartStopRoundTrip(t *testing.T) {
	sink := &fakeSink{}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRecording {
		t.Fatalf("state = %v, want recording", c.State())
	}

	time.Sleep(200 * time.Millisecond)

	rec, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRecorded {
		t.Errorf("state = %v, want recorded", c.State())
	}
	if len(rec.Data) == 0 {
		t.Fatal("recording is empty")
	}
	if rec.MimeType != "video/webm" {
		t.Errorf("mime = %q, want video/webm", rec.MimeType)
	}
	if !sink.finished {
		t.Error("sink was not finished on stop")
	}
}

func TestDoubleStartIsNoop(t *testing.T) {
	sink := &fakeSink{}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Start(context.Background(), Options{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Start %d returned error: %v", i, err)
		}
	}

	c.mu.Lock()
	if c.session == nil {
		t.Error("no session after concurrent starts")
	}
	c.mu.Unlock()

	// A third start while recording is also a no-op.
	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Errorf("Start while recording should be a no-op, got %v", err)
	}
	c.Reset()
}

func TestStopIdempotent(t *testing.T) {
	sink := &fakeSink{}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	if _, err := c.Stop(); err != nil {
		t.Errorf("Stop while idle should be a no-op, got %v", err)
	}

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	first, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("second Stop should return the same recording")
	}
}

func TestNoDataCaptured(t *testing.T) {
	sink := &fakeSink{silent: true}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	_, err := c.Stop()
	if !errors.Is(err, progress.ErrNoDataCaptured) {
		t.Errorf("expected ErrNoDataCaptured, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state after failure = %v, want idle", c.State())
	}
}

func TestAutoStopWhenTrackEnds(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.NewScreen = func(w, h, fps int) Source {
		src := NewSyntheticSource(w, h, fps)
		src.EndAfter = 5
		return src
	}
	c := NewControllerWithDeps(testConfig(), deps)

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == StateRecorded || c.State() == StateIdle {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := c.State(); got != StateRecorded && got != StateIdle {
		t.Errorf("session did not auto-stop, state = %v", got)
	}
}

func TestBackgroundFetchFailureAbortsStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login page</html>"))
	}))
	defer srv.Close()

	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.HTTPClient = srv.Client()
	c := NewControllerWithDeps(testConfig(), deps)

	err := c.Start(context.Background(), Options{BackgroundImageURL: srv.URL})
	if !errors.Is(err, progress.ErrCompositorInit) {
		t.Errorf("expected ErrCompositorInit, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state after aborted start = %v, want idle", c.State())
	}
}

func TestInvalidBackgroundColorAbortsStart(t *testing.T) {
	sink := &fakeSink{}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	err := c.Start(context.Background(), Options{BackgroundColor: "#zzz"})
	if !errors.Is(err, progress.ErrCompositorInit) {
		t.Errorf("expected ErrCompositorInit, got %v", err)
	}
}

func TestAudioFallbackToVideoOnly(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"device missing", progress.ErrDeviceNotFound},
		{"permission denied", progress.ErrPermissionDenied},
		{"config rejected", progress.ErrUnsupportedConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			deps := testDeps(sink)
			deps.NewPrimary = func() (audioInput, error) {
				return nil, fmt.Errorf("%w: monitor source", tt.cause)
			}
			c := NewControllerWithDeps(testConfig(), deps)

			if err := c.Start(context.Background(), Options{Audio: true}); err != nil {
				t.Fatalf("recoverable audio failure must not abort the session: %v", err)
			}
			c.Reset()
		})
	}
}

func TestUnrecoverableAudioFailureAborts(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.NewPrimary = func() (audioInput, error) {
		return nil, fmt.Errorf("%w: backend crashed", progress.ErrCaptureFailed)
	}
	c := NewControllerWithDeps(testConfig(), deps)

	err := c.Start(context.Background(), Options{Audio: true})
	if !errors.Is(err, progress.ErrCaptureFailed) {
		t.Errorf("expected ErrCaptureFailed, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestMicFailureIsNonFatal(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.NewMic = func() (audioInput, error) {
		return nil, fmt.Errorf("%w: no microphone", progress.ErrDeviceNotFound)
	}
	c := NewControllerWithDeps(testConfig(), deps)

	if err := c.Start(context.Background(), Options{AudioMixing: true}); err != nil {
		t.Fatalf("mixing failure must be non-fatal: %v", err)
	}
	c.Reset()
}

// trackedSource records lifecycle calls on a wrapped source.
type trackedSource struct {
	Source
	started atomic.Bool
	halted  atomic.Bool
}

func (s *trackedSource) Start(ctx context.Context) error {
	s.started.Store(true)
	return s.Source.Start(ctx)
}

func (s *trackedSource) Stop() {
	s.halted.Store(true)
	s.Source.Stop()
}

// brokenSource fails to start with a fixed error.
type brokenSource struct {
	err error
}

func (b *brokenSource) Start(_ context.Context) error { return b.err }
func (b *brokenSource) Latest() *image.NRGBA          { return nil }
func (b *brokenSource) Size() image.Point             { return image.Point{} }
func (b *brokenSource) FrameRate() int                { return 30 }
func (b *brokenSource) Done() <-chan struct{}         { return nil }
func (b *brokenSource) Stop()                         {}

func TestPIPAcquiresCamera(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	cam := &trackedSource{Source: NewSyntheticSource(32, 24, 60)}
	deps.NewCamera = func(_, _, _ int) Source { return cam }
	c := NewControllerWithDeps(testConfig(), deps)

	if err := c.Start(context.Background(), Options{PIP: true}); err != nil {
		t.Fatal(err)
	}
	if !cam.started.Load() {
		t.Error("picture-in-picture start did not acquire the camera")
	}

	c.Reset()
	if !cam.halted.Load() {
		t.Error("camera was not released on reset")
	}
}

func TestPIPWithoutFlagLeavesCameraIdle(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	cam := &trackedSource{Source: NewSyntheticSource(32, 24, 60)}
	deps.NewCamera = func(_, _, _ int) Source { return cam }
	c := NewControllerWithDeps(testConfig(), deps)

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	defer c.Reset()

	if cam.started.Load() {
		t.Error("camera acquired without the picture-in-picture option")
	}
}

func TestPIPCameraFailureDegradesToScreenOnly(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.NewCamera = func(_, _, _ int) Source {
		return &brokenSource{err: fmt.Errorf("%w: /dev/video0", progress.ErrDeviceNotFound)}
	}
	c := NewControllerWithDeps(testConfig(), deps)

	if err := c.Start(context.Background(), Options{PIP: true}); err != nil {
		t.Fatalf("recoverable camera failure must not abort the session: %v", err)
	}
	c.Reset()
}

func TestPIPUnrecoverableCameraFailureAborts(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps(sink)
	deps.NewCamera = func(_, _, _ int) Source {
		return &brokenSource{err: fmt.Errorf("%w: backend crashed", progress.ErrCaptureFailed)}
	}
	c := NewControllerWithDeps(testConfig(), deps)

	err := c.Start(context.Background(), Options{PIP: true})
	if !errors.Is(err, progress.ErrCaptureFailed) {
		t.Errorf("expected ErrCaptureFailed, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestLoad(t *testing.T) {
	c := NewControllerWithDeps(testConfig(), testDeps(&fakeSink{}))

	if err := c.Load(nil, "video/webm"); !errors.Is(err, progress.ErrEmptyResult) {
		t.Errorf("empty load should fail with ErrEmptyResult, got %v", err)
	}
	if err := c.Load([]byte("data"), "application/pdf"); err == nil {
		t.Error("unsupported media type should be rejected")
	}

	if err := c.Load([]byte("data"), "video/mp4"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRecorded {
		t.Errorf("state after load = %v, want recorded", c.State())
	}
	if rec := c.Recording(); rec == nil || rec.MimeType != "video/mp4" {
		t.Errorf("loaded recording = %+v", rec)
	}
}

func TestReset(t *testing.T) {
	sink := &fakeSink{}
	c := NewControllerWithDeps(testConfig(), testDeps(sink))

	if err := c.Start(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	c.Reset()

	if c.State() != StateIdle {
		t.Errorf("state after reset = %v, want idle", c.State())
	}
	if c.Recording() != nil {
		t.Error("recording should be discarded on reset")
	}
	if !sink.aborted {
		t.Error("sink should be aborted on reset")
	}
}

func TestClassifyDeviceError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"open /dev/video0: permission denied", progress.ErrPermissionDenied},
		{"screen capture not authorized", progress.ErrPermissionDenied},
		{"no such device /dev/video9", progress.ErrDeviceNotFound},
		{"x11grab: cannot open display", progress.ErrDeviceNotFound},
		{"audio device start: format not supported", progress.ErrUnsupportedConfig},
		{"invalid device config", progress.ErrUnsupportedConfig},
		{"broken pipe", progress.ErrCaptureFailed},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := classifyDeviceError(errors.New(tt.msg))
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyDeviceError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestOptionsHasBackground(t *testing.T) {
	if (Options{}).HasBackground() {
		t.Error("empty options should have no background")
	}
	if !(Options{BackgroundColor: "#fff"}).HasBackground() {
		t.Error("color options should have a background")
	}
	if !(Options{BackgroundImageURL: "https://x/bg.png"}).HasBackground() {
		t.Error("image options should have a background")
	}
}
