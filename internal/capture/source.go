package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"clip-studio/internal/logging"
	"clip-studio/internal/progress"
)

// Source is a live video input: a screen or camera device delivering raw
// frames. The latest frame is always available once the source is running;
// Done is closed when the underlying track ends (for a screen source, when
// the user revokes sharing).
type Source interface {
	Start(ctx context.Context) error
	Latest() *image.NRGBA
	Size() image.Point
	FrameRate() int
	Done() <-chan struct{}
	Stop()
}

// ffmpegSource reads rawvideo RGBA frames from an ffmpeg device demuxer.
type ffmpegSource struct {
	label     string
	args      []string
	width     int
	height    int
	frameRate int

	cmd     *exec.Cmd
	latest  atomic.Pointer[image.NRGBA]
	done    chan struct{}
	stopped atomic.Bool
}

// NewScreenSource captures the display via the platform's screen demuxer.
func NewScreenSource(width, height, frameRate int) Source {
	return &ffmpegSource{
		label:     "screen",
		args:      screenArgs(width, height, frameRate),
		width:     width,
		height:    height,
		frameRate: frameRate,
		done:      make(chan struct{}),
	}
}

// NewCameraSource captures the default camera device.
func NewCameraSource(width, height, frameRate int) Source {
	return &ffmpegSource{
		label:     "camera",
		args:      cameraArgs(width, height, frameRate),
		width:     width,
		height:    height,
		frameRate: frameRate,
		done:      make(chan struct{}),
	}
}

func screenArgs(w, h, fps int) []string {
	size := fmt.Sprintf("%dx%d", w, h)
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", strconv.Itoa(fps), "-video_size", size, "-i", "1:none"}
	case "windows":
		return []string{"-f", "gdigrab", "-framerate", strconv.Itoa(fps), "-video_size", size, "-i", "desktop"}
	default:
		return []string{"-f", "x11grab", "-framerate", strconv.Itoa(fps), "-video_size", size, "-i", ":0.0"}
	}
}

func cameraArgs(w, h, fps int) []string {
	size := fmt.Sprintf("%dx%d", w, h)
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", strconv.Itoa(fps), "-video_size", size, "-i", "0:none"}
	case "windows":
		return []string{"-f", "dshow", "-video_size", size, "-i", "video=default"}
	default:
		return []string{"-f", "v4l2", "-framerate", strconv.Itoa(fps), "-video_size", size, "-i", "/dev/video0"}
	}
}

func (s *ffmpegSource) Start(ctx context.Context) error {
	args := append([]string{"-hide_banner"}, s.args...)
	args = append(args,
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stderr := &strings.Builder{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", progress.ErrCaptureFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return classifyDeviceError(fmt.Errorf("failed to start %s capture: %w", s.label, err))
	}
	s.cmd = cmd

	go s.readFrames(stdout, stderr)
	logging.Info("Started %s source: %dx%d @ %d fps", s.label, s.width, s.height, s.frameRate)
	return nil
}

func (s *ffmpegSource) readFrames(r io.Reader, stderr *strings.Builder) {
	defer close(s.done)
	frameLen := s.width * s.height * 4

	for {
		pix := make([]byte, frameLen)
		if _, err := io.ReadFull(r, pix); err != nil {
			if !s.stopped.Load() {
				logging.Warn("%s source ended: %v (%s)", s.label, err, lastLine(stderr.String()))
			}
			return
		}
		s.latest.Store(&image.NRGBA{
			Pix:    pix,
			Stride: s.width * 4,
			Rect:   image.Rect(0, 0, s.width, s.height),
		})
	}
}

func (s *ffmpegSource) Latest() *image.NRGBA {
	return s.latest.Load()
}

func (s *ffmpegSource) Size() image.Point {
	return image.Point{X: s.width, Y: s.height}
}

func (s *ffmpegSource) FrameRate() int {
	return s.frameRate
}

func (s *ffmpegSource) Done() <-chan struct{} {
	return s.done
}

func (s *ffmpegSource) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			logging.Debug("%s source kill: %v", s.label, err)
		}
		_ = s.cmd.Wait()
	}
}

// classifyDeviceError maps raw device failures onto the capture error
// taxonomy so callers can distinguish recoverable causes.
func classifyDeviceError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %v", progress.ErrPermissionDenied, err)
	case strings.Contains(msg, "not supported") || strings.Contains(msg, "unsupported") || strings.Contains(msg, "invalid device config"):
		return fmt.Errorf("%w: %v", progress.ErrUnsupportedConfig, err)
	case strings.Contains(msg, "no such") || strings.Contains(msg, "not found") || strings.Contains(msg, "cannot open"):
		return fmt.Errorf("%w: %v", progress.ErrDeviceNotFound, err)
	default:
		return fmt.Errorf("%w: %v", progress.ErrCaptureFailed, err)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
