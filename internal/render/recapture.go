package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"clip-studio/internal/audio"
	"clip-studio/internal/encoder"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/memory"
	"clip-studio/internal/progress"
	"clip-studio/internal/timeline"
)

// Recapture renders a job by replaying the kept segments, one at a time,
// composing each decoded frame onto the output canvas and feeding a fresh
// encoder sink. The transport is pause, seek, resume per segment; frame
// timing derives from the decoded media timestamps, never from the wall
// clock.
type Recapture struct {
	// FFmpegPath overrides the ffmpeg binary used for decoding. Empty
	// means "ffmpeg" on PATH.
	FFmpegPath string

	// Memory, when set, applies backpressure while GIF frames accumulate
	// in memory.
	Memory *memory.Monitor
}

// Name identifies the renderer in logs and metrics.
func (r *Recapture) Name() string { return "recapture" }

// Render runs the job end to end.
func (r *Recapture) Render(ctx context.Context, job *Job) ([]byte, error) {
	reporter := progress.NewReporter(job.OnProgress)
	reporter.Start()
	p, err := prepare(ctx, job, reporter)
	if err != nil {
		return nil, err
	}
	out, err := r.renderPrepared(ctx, p)
	if err != nil {
		return nil, err
	}
	reporter.Finish()
	return out, nil
}

func (r *Recapture) renderPrepared(ctx context.Context, p *params) ([]byte, error) {
	dir, err := os.MkdirTemp("", "clip-recapture-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "source"+extFor(p.info))
	if err := os.WriteFile(srcPath, p.job.Source, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}

	cv := newCanvas(p)

	// Music decodes once to PCM and is consumed progressively as segments
	// replay.
	var music []byte
	if p.wantMusic() {
		musicPath := filepath.Join(dir, "music")
		if err := os.WriteFile(musicPath, p.music, 0o600); err != nil {
			return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
		}
		music, err = r.decodePCM(ctx, musicPath, nil, 1)
		if err != nil {
			logging.Warn("Music decode failed (%v), exporting without music", err)
			music = nil
		} else {
			music = audio.ApplyGain(music, p.musicVolume)
		}
	}

	if p.job.Format == mediatypes.FormatGIF {
		return r.renderGIF(ctx, p, cv, srcPath)
	}
	return r.renderVideo(ctx, p, cv, srcPath, music)
}

func (r *Recapture) renderVideo(ctx context.Context, p *params, cv *canvas, srcPath string, music []byte) ([]byte, error) {
	var out bytes.Buffer
	var outMu sync.Mutex

	hasAudio := p.wantClipAudio() || len(music) > 0
	pair := mediatypes.Codecs[p.job.Format]
	if !hasAudio {
		pair.Audio = ""
	}

	sink := encoder.NewSink(encoder.Options{
		Width:     p.canvasW,
		Height:    p.canvasH,
		FrameRate: p.frameRate,
		Format:    p.job.Format,
		Codecs:    pair,
		HasAudio:  hasAudio,
	}, func(chunk []byte) {
		outMu.Lock()
		out.Write(chunk)
		outMu.Unlock()
	})
	if err := sink.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}

	musicOffset := 0
	played := newPlayhead(p)

	for _, seg := range p.segments {
		// Transport: the sink stays paused across the seek so nothing from
		// the previous segment bleeds into this one.
		sink.Pause()

		var segPCM []byte
		if p.wantClipAudio() {
			pcm, err := r.decodePCM(ctx, srcPath, &seg, p.speed)
			if err != nil {
				sink.Abort()
				return nil, err
			}
			segPCM = audio.ApplyGain(pcm, p.clipVolume)
		}
		if len(music) > 0 {
			want := alignFrames(int(seg.Duration() / p.speed * float64(audio.SampleRate*audio.BytesPerFrame)))
			slice := musicSlice(music, musicOffset, want)
			musicOffset += len(slice)
			if segPCM == nil {
				segPCM = slice
			} else {
				segPCM = audio.Mix(
					audio.Track{PCM: segPCM, Gain: 1},
					audio.Track{PCM: slice, Gain: 1},
				)
			}
		}

		sink.Resume()

		// Audio is drip-fed alongside the frames so neither subprocess
		// pipe fills up while the other starves.
		pcmPerFrame := 0
		if len(segPCM) > 0 {
			frames := int(seg.Duration() / p.speed * float64(p.frameRate))
			if frames > 0 {
				pcmPerFrame = alignFrames(len(segPCM) / frames)
			}
		}
		pcmOffset := 0

		err := r.decodeSegment(ctx, srcPath, seg, p, func(frame *image.NRGBA) error {
			if err := sink.WriteFrame(cv.compose(frame)); err != nil {
				return err
			}
			if pcmPerFrame > 0 && pcmOffset < len(segPCM) {
				end := pcmOffset + pcmPerFrame
				if end > len(segPCM) {
					end = len(segPCM)
				}
				if err := sink.WriteAudio(segPCM[pcmOffset:end]); err != nil {
					return err
				}
				pcmOffset = end
			}
			played.tick()
			return nil
		})
		if err != nil {
			sink.Abort()
			return nil, err
		}

		// Flush whatever audio the frame loop did not cover (early EOS).
		if pcmOffset < len(segPCM) {
			if err := sink.WriteAudio(segPCM[pcmOffset:]); err != nil {
				sink.Abort()
				return nil, err
			}
		}
	}

	if err := sink.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}

	outMu.Lock()
	defer outMu.Unlock()
	if out.Len() == 0 {
		return nil, progress.ErrEmptyResult
	}
	return out.Bytes(), nil
}

func (r *Recapture) renderGIF(ctx context.Context, p *params, cv *canvas, srcPath string) ([]byte, error) {
	// Sample every Nth replayed frame so the GIF runs near its fixed reduced
	// rate regardless of the clip's frame rate. The encoder derives frame
	// delays from this exact interval, keeping the GIF runtime equal to the
	// edited duration.
	sampleEvery := p.frameRate / GIFFrameRate
	if sampleEvery < 1 {
		sampleEvery = 1
	}
	ge := newGIFEncoder(p.canvasW, p.canvasH, sampleEvery, p.frameRate)

	played := newPlayhead(p)
	frameIdx := 0

	for _, seg := range p.segments {
		err := r.decodeSegment(ctx, srcPath, seg, p, func(frame *image.NRGBA) error {
			if frameIdx%sampleEvery == 0 {
				if r.Memory != nil && !r.Memory.WaitIfPaused() {
					return fmt.Errorf("%w: render stopped under memory pressure", progress.ErrRenderFailed)
				}
				ge.AddFrame(cv.compose(frame))
			}
			frameIdx++
			played.tick()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logging.Debug("GIF recapture: %d frames sampled of %d replayed", ge.FrameCount(), frameIdx)
	return ge.Encode()
}

// decodeSegment replays one segment as raw RGBA frames at the output frame
// rate, already retimed for playback speed. A truncated final frame means
// the stream ended early and is not an error.
func (r *Recapture) decodeSegment(ctx context.Context, path string, seg timeline.Segment, p *params, onFrame func(*image.NRGBA) error) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", ffNum(seg.Start), "-to", ffNum(seg.End),
		"-i", path,
		"-vf", fmt.Sprintf("setpts=(PTS-STARTPTS)/%s,fps=%d", ffNum(p.speed), p.frameRate),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, r.ffmpeg(), args...)
	stderr := newStderrTail()
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg start: %v", progress.ErrRenderFailed, err)
	}

	frameSize := p.info.Width * p.info.Height * 4
	for {
		frame := image.NewNRGBA(image.Rect(0, 0, p.info.Width, p.info.Height))
		if _, err := io.ReadFull(stdout, frame.Pix[:frameSize]); err != nil {
			break
		}
		if err := onFrame(frame); err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			return err
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: segment decode: %v: %s", progress.ErrRenderFailed, err, stderr.Tail())
	}
	return nil
}

// decodePCM decodes a file (or one segment of it) to 48 kHz s16le stereo.
// speed above 1 shortens the audio via atempo to match the retimed video.
func (r *Recapture) decodePCM(ctx context.Context, path string, seg *timeline.Segment, speed float64) ([]byte, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if seg != nil {
		args = append(args, "-ss", ffNum(seg.Start), "-to", ffNum(seg.End))
	}
	args = append(args, "-i", path, "-vn")
	if speed != 1 {
		args = append(args, "-filter:a", "atempo="+ffNum(speed))
	}
	args = append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, r.ffmpeg(), args...)
	stderr := newStderrTail()
	cmd.Stderr = stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: audio decode: %v: %s", progress.ErrRenderFailed, err, stderr.Tail())
	}
	return out, nil
}

func (r *Recapture) ffmpeg() string {
	if r.FFmpegPath != "" {
		return r.FFmpegPath
	}
	return "ffmpeg"
}

// playhead tracks cumulative played duration across segments and reports
// it as a fraction of the edited total.
type playhead struct {
	p         *params
	perFrame  float64
	playedSec float64
	totalSec  float64
}

func newPlayhead(p *params) *playhead {
	return &playhead{
		p:        p,
		perFrame: 1 / float64(p.frameRate),
		totalSec: p.editedDuration(),
	}
}

func (ph *playhead) tick() {
	ph.playedSec += ph.perFrame
	if ph.totalSec > 0 {
		ph.p.reporter.Report(ph.playedSec / ph.totalSec)
	}
}

// musicSlice returns up to want bytes of the music track starting at
// offset, frame-aligned, empty when the track is exhausted.
func musicSlice(music []byte, offset, want int) []byte {
	if offset >= len(music) || want <= 0 {
		return nil
	}
	end := offset + want
	if end > len(music) {
		end = len(music)
	}
	return music[offset:alignFrames(end-offset)+offset]
}

func alignFrames(n int) int {
	return n - n%audio.BytesPerFrame
}
