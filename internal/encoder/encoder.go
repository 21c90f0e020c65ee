package encoder

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"clip-studio/internal/audio"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/progress"
)

// ChunkSize bounds each delivered chunk so partial data survives abrupt
// termination instead of accumulating until the end of the recording.
const ChunkSize = 256 * 1024

// ChunkFunc receives encoded container bytes in delivery order. Zero-length
// chunks are never delivered.
type ChunkFunc func(chunk []byte)

// Options configures an encoder sink.
type Options struct {
	Width     int
	Height    int
	FrameRate int

	Format mediatypes.Format
	Codecs mediatypes.CodecPair

	// HasAudio wires a second PCM input (48 kHz s16le stereo) on fd 3.
	HasAudio bool
}

// Sink drives an ffmpeg process that consumes raw RGBA frames (and
// optionally PCM audio) and emits encoded container chunks. It is the
// single owner of the subprocess; Finish or Abort must be called exactly
// once after a successful Start.
type Sink struct {
	opts    Options
	onChunk ChunkFunc

	cmd        *exec.Cmd
	videoIn    io.WriteCloser
	audioIn    *os.File
	stderr     *prefixLogger
	pumpDone   chan struct{}
	paused     atomic.Bool
	chunkCount atomic.Uint64
	byteCount  atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewSink creates an unstarted sink.
func NewSink(opts Options, onChunk ChunkFunc) *Sink {
	return &Sink{opts: opts, onChunk: onChunk, pumpDone: make(chan struct{})}
}

// Start launches the encoder process and the chunk pump.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%w: sink already started", progress.ErrEncoding)
	}

	args := s.buildArgs()
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var audioRead *os.File
	if s.opts.HasAudio {
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("%w: audio pipe: %v", progress.ErrEncoding, err)
		}
		audioRead = r
		s.audioIn = w
		cmd.ExtraFiles = []*os.File{r} // becomes fd 3 in the child
	}

	videoIn, err := cmd.StdinPipe()
	if err != nil {
		s.closeAudio()
		return fmt.Errorf("%w: stdin pipe: %v", progress.ErrEncoding, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.closeAudio()
		return fmt.Errorf("%w: stdout pipe: %v", progress.ErrEncoding, err)
	}
	s.stderr = newPrefixLogger("encoder")
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		s.closeAudio()
		return fmt.Errorf("%w: failed to start ffmpeg: %v", progress.ErrEncoding, err)
	}

	// The parent must not hold the child's read end open.
	if audioRead != nil {
		if err := audioRead.Close(); err != nil {
			logging.Warn("failed to close audio pipe read end: %v", err)
		}
	}

	s.cmd = cmd
	s.videoIn = videoIn
	s.started = true

	go s.pump(stdout)

	logging.Debug("Encoder sink started: %dx%d@%d %s -> %s",
		s.opts.Width, s.opts.Height, s.opts.FrameRate, s.opts.Codecs.Video, s.opts.Format)
	return nil
}

// buildArgs assembles the ffmpeg invocation: rawvideo on stdin, optional
// PCM on fd 3, container stream on stdout.
func (s *Sink) buildArgs() []string {
	args := []string{
		"-hide_banner",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.opts.Width, s.opts.Height),
		"-r", strconv.Itoa(s.opts.FrameRate),
		"-i", "pipe:0",
	}

	if s.opts.HasAudio {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(audio.SampleRate),
			"-ac", strconv.Itoa(audio.Channels),
			"-i", "pipe:3",
		)
	}

	args = append(args, "-c:v", s.opts.Codecs.Video)
	switch s.opts.Codecs.Video {
	case "libvpx-vp9", "libvpx":
		// Realtime settings so encoding keeps pace with capture.
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-b:v", "4M")
	case "libx264":
		args = append(args, "-preset", "ultrafast", "-tune", "zerolatency", "-crf", "23", "-pix_fmt", "yuv420p")
	}

	if s.opts.HasAudio && s.opts.Codecs.Audio != "" {
		args = append(args, "-c:a", s.opts.Codecs.Audio, "-b:a", "128k")
	}

	container := string(s.opts.Format)
	if s.opts.Format == mediatypes.FormatMP4 {
		// Fragmented output: stdout is not seekable and partial data must
		// remain playable.
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	return append(args, "-f", container, "pipe:1")
}

// pump reads encoded output in bounded chunks and delivers each nonzero
// chunk in order.
func (s *Sink) pump(r io.Reader) {
	defer close(s.pumpDone)
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunkCount.Add(1)
			s.byteCount.Add(uint64(n))
			if s.onChunk != nil {
				s.onChunk(chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				logging.Debug("Encoder chunk pump ended: %v", err)
			}
			return
		}
	}
}

// WriteFrame feeds one raw RGBA frame. Frames written while the sink is
// paused are dropped silently.
func (s *Sink) WriteFrame(frame *image.NRGBA) error {
	if s.paused.Load() {
		return nil
	}
	if frame.Bounds().Dx() != s.opts.Width || frame.Bounds().Dy() != s.opts.Height {
		return fmt.Errorf("%w: frame size %v does not match sink %dx%d",
			progress.ErrEncoding, frame.Bounds().Size(), s.opts.Width, s.opts.Height)
	}
	if _, err := s.videoIn.Write(frame.Pix); err != nil {
		return fmt.Errorf("%w: frame write: %v", progress.ErrEncoding, err)
	}
	return nil
}

// WriteAudio feeds interleaved s16le stereo PCM.
func (s *Sink) WriteAudio(pcm []byte) error {
	if s.audioIn == nil {
		return fmt.Errorf("%w: sink has no audio input", progress.ErrEncoding)
	}
	if s.paused.Load() {
		return nil
	}
	if _, err := s.audioIn.Write(pcm); err != nil {
		return fmt.Errorf("%w: audio write: %v", progress.ErrEncoding, err)
	}
	return nil
}

// Pause stops consuming media without stopping the encoder process. Used by
// the re-capture renderer's per-segment transport control.
func (s *Sink) Pause() {
	s.paused.Store(true)
}

// Resume reverses Pause.
func (s *Sink) Resume() {
	s.paused.Store(false)
}

// ChunkCount returns the number of chunks delivered so far.
func (s *Sink) ChunkCount() uint64 {
	return s.chunkCount.Load()
}

// Finish closes the inputs, waits for the encoder to flush, and returns
// once the final chunk has been delivered.
func (s *Sink) Finish() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.videoIn.Close(); err != nil {
		logging.Warn("failed to close encoder video input: %v", err)
	}
	s.closeAudio()

	err := s.cmd.Wait()
	<-s.pumpDone

	if err != nil {
		return fmt.Errorf("%w: ffmpeg: %v (%s)", progress.ErrEncoding, err, s.stderr.Tail())
	}
	logging.Debug("Encoder sink finished: %d chunks, %d bytes", s.chunkCount.Load(), s.byteCount.Load())
	return nil
}

// Abort kills the encoder without waiting for a clean flush. Idempotent
// with Finish.
func (s *Sink) Abort() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			logging.Warn("failed to kill encoder process: %v", err)
		}
	}
	if err := s.videoIn.Close(); err != nil {
		logging.Debug("encoder video input close after kill: %v", err)
	}
	s.closeAudio()
	_ = s.cmd.Wait()
	<-s.pumpDone
}

func (s *Sink) closeAudio() {
	if s.audioIn != nil {
		if err := s.audioIn.Close(); err != nil {
			logging.Debug("encoder audio input close: %v", err)
		}
		s.audioIn = nil
	}
}
