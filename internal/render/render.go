package render

import (
	"context"
	"fmt"
	"time"

	"clip-studio/internal/background"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/memory"
	"clip-studio/internal/metrics"
	"clip-studio/internal/probe"
	"clip-studio/internal/progress"
	"clip-studio/internal/timeline"
)

// Defaults for jobs that leave geometry unset.
const (
	DefaultWidth     = 1920
	DefaultHeight    = 1080
	DefaultFrameRate = 30

	// GIFFrameRate is the fixed sampling rate of the GIF output path.
	GIFFrameRate = 12
)

// Job describes one export: the recorded clip, the edit applied to it, and
// the requested output.
type Job struct {
	// Source holds the recorded clip bytes.
	Source []byte
	// SourceInfo describes Source. Probed when nil.
	SourceInfo *probe.ClipInfo

	// Segments is the kept portion of the clip, ordered and non-overlapping.
	Segments []timeline.Segment
	// Edit carries the non-destructive parameters. Nil means identity.
	Edit *timeline.EditorState
	// Music holds raw music track bytes. When empty, the edit's music
	// asset is resolved instead, fetching remote tracks on demand.
	Music []byte

	// Format is the requested output container.
	Format mediatypes.Format
	// Width and Height set the output canvas. Zero selects the defaults.
	Width  int
	Height int
	// FrameRate sets the output frame rate. Zero selects the default.
	FrameRate int

	// Background fills the canvas behind the clip, when set.
	Background *background.Background

	// OnProgress receives fraction reports in [0,1].
	OnProgress progress.Func
}

// Renderer turns a job into encoded output bytes.
type Renderer interface {
	Render(ctx context.Context, job *Job) ([]byte, error)
	Name() string
}

// params is a job after validation: probed, clamped and with the derived
// geometry attached. Both renderers consume the same params, so duration
// math and layout agree between them.
type params struct {
	job      *Job
	info     *probe.ClipInfo
	segments []timeline.Segment
	layout   timeline.Layout
	reporter *progress.Reporter
	music    []byte

	clipVolume  float64
	musicVolume float64
	speed       float64

	canvasW   int
	canvasH   int
	frameRate int
}

// editedDuration is the output duration in seconds: the summed segment
// durations divided by the playback speed.
func (p *params) editedDuration() float64 {
	var total float64
	for _, s := range p.segments {
		total += s.Duration()
	}
	return total / p.speed
}

func (p *params) wantClipAudio() bool {
	return p.job.Format.HasAudio() && p.info.HasAudio() && p.clipVolume > 0
}

func (p *params) wantMusic() bool {
	return p.job.Format.HasAudio() && len(p.music) > 0 && p.musicVolume > 0
}

// prepare validates a job and derives the shared parameters. Probing runs
// only when the caller did not supply SourceInfo.
func prepare(ctx context.Context, job *Job, reporter *progress.Reporter) (*params, error) {
	if len(job.Source) == 0 {
		return nil, fmt.Errorf("%w: empty source", progress.ErrRenderFailed)
	}
	if !job.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown output format %q", progress.ErrRenderFailed, job.Format)
	}

	info := job.SourceInfo
	if info == nil {
		var err error
		info, err = probe.Bytes(ctx, job.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: probe: %v", progress.ErrRenderFailed, err)
		}
	}

	segments := clampSegments(job.Segments, info.Duration)
	if len(segments) == 0 {
		return nil, progress.ErrNoSegments
	}

	p := &params{
		job:      job,
		info:     info,
		segments: segments,
		reporter: reporter,

		clipVolume:  1,
		musicVolume: 1,
		speed:       1,

		canvasW:   job.Width,
		canvasH:   job.Height,
		frameRate: job.FrameRate,
	}

	zoom, panX, panY := 1.0, 0.0, 0.0
	if e := job.Edit; e != nil {
		p.clipVolume = clamp(e.ClipVolume(), 0, 1)
		p.musicVolume = clamp(e.MusicVolume(), 0, 1)
		p.speed = clamp(e.Speed(), timeline.MinSpeed, timeline.MaxSpeed)
		zoom = e.Zoom()
		panX, panY = e.Pan()
	}

	p.music = job.Music
	if len(p.music) == 0 && job.Edit != nil {
		p.music = resolveMusic(ctx, job.Edit.Music())
	}

	if p.canvasW <= 0 || p.canvasH <= 0 {
		p.canvasW, p.canvasH = DefaultWidth, DefaultHeight
	}
	if p.frameRate <= 0 {
		p.frameRate = DefaultFrameRate
	}

	p.layout = timeline.ComputeLayout(info.Width, info.Height, zoom, panX, panY, p.canvasW, p.canvasH)
	p.canvasW = p.layout.CanvasSize.X
	p.canvasH = p.layout.CanvasSize.Y

	if p.editedDuration() <= 0 {
		return nil, progress.ErrNoSegments
	}
	return p, nil
}

// resolveMusic materializes the edit's music asset. A remote track that
// cannot be fetched degrades to a music-free export rather than failing it.
func resolveMusic(ctx context.Context, m timeline.MusicAsset) []byte {
	switch {
	case len(m.Data) > 0:
		return m.Data
	case m.URL != "":
		data, err := background.FetchMusic(ctx, nil, m.URL)
		if err != nil {
			logging.Warn("Music fetch failed (%v), exporting without music", err)
			return nil
		}
		return data
	default:
		return nil
	}
}

// clampSegments orders segments, clips them to the source duration and
// drops the degenerate ones.
func clampSegments(segs []timeline.Segment, sourceDuration float64) []timeline.Segment {
	out := make([]timeline.Segment, 0, len(segs))
	for _, s := range segs {
		if s.Start < 0 {
			s.Start = 0
		}
		if sourceDuration > 0 && s.End > sourceDuration {
			s.End = sourceDuration
		}
		if s.End-s.Start <= 0 {
			continue
		}
		out = append(out, s)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Start < out[j-1].Start; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// isFastPath reports whether the job can return the source bytes unchanged:
// identical container, a video codec native to it, and a strict identity
// edit.
func isFastPath(p *params) bool {
	srcFormat, ok := p.info.Format()
	if !ok || srcFormat != p.job.Format {
		return false
	}
	if !p.job.Format.NativeVideoCodec(p.info.VideoCodec) {
		return false
	}
	if p.job.Background != nil || len(p.music) > 0 {
		return false
	}
	if p.job.Edit != nil {
		return p.job.Edit.IsIdentity()
	}
	// Without editor state the edit is identity when one segment spans the
	// whole clip.
	return len(p.segments) == 1 &&
		p.segments[0].Start == 0 &&
		p.segments[0].End == p.info.Duration
}

// Engine routes jobs: fast path first, then the filtergraph renderer, and
// the re-capture renderer when the filtergraph fails.
type Engine struct {
	filterGraph Renderer
	recapture   Renderer
}

// NewEngine creates an engine with the production renderer pair. ffmpegPath
// may be empty to use "ffmpeg" from PATH; monitor may be nil to disable
// memory backpressure.
func NewEngine(ffmpegPath string, monitor *memory.Monitor) *Engine {
	return &Engine{
		filterGraph: &FilterGraph{FFmpegPath: ffmpegPath},
		recapture:   &Recapture{FFmpegPath: ffmpegPath, Memory: monitor},
	}
}

// Render runs one export job.
func (e *Engine) Render(ctx context.Context, job *Job) ([]byte, error) {
	reporter := progress.NewReporter(job.OnProgress)
	reporter.Start()

	p, err := prepare(ctx, job, reporter)
	if err != nil {
		return nil, err
	}

	if isFastPath(p) {
		logging.Debug("Export fast path: returning %d source bytes unchanged", len(job.Source))
		reporter.Finish()
		metrics.RenderJobsTotal.WithLabelValues("fastpath", "success").Inc()
		return job.Source, nil
	}

	out, err := e.run(ctx, e.filterGraph, p)
	if err != nil {
		logging.Warn("%s renderer failed (%v), retrying with %s", e.filterGraph.Name(), err, e.recapture.Name())
		out, err = e.run(ctx, e.recapture, p)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, progress.ErrEmptyResult
	}

	reporter.Finish()
	metrics.RenderOutputBytes.WithLabelValues(string(job.Format)).Observe(float64(len(out)))
	return out, nil
}

func (e *Engine) run(ctx context.Context, r Renderer, p *params) ([]byte, error) {
	metrics.RenderJobsInProgress.Inc()
	defer metrics.RenderJobsInProgress.Dec()

	timer := newJobTimer(r.Name())
	out, err := renderPrepared(ctx, r, p)
	timer.done(err)
	return out, err
}

// renderPrepared hands already-prepared params to a renderer implementation.
type preparedRenderer interface {
	renderPrepared(ctx context.Context, p *params) ([]byte, error)
}

func renderPrepared(ctx context.Context, r Renderer, p *params) ([]byte, error) {
	if pr, ok := r.(preparedRenderer); ok {
		return pr.renderPrepared(ctx, p)
	}
	return r.Render(ctx, p.job)
}

type jobTimer struct {
	renderer string
	start    time.Time
}

func newJobTimer(renderer string) *jobTimer {
	return &jobTimer{renderer: renderer, start: time.Now()}
}

func (t *jobTimer) done(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RenderJobsTotal.WithLabelValues(t.renderer, status).Inc()
	metrics.RenderJobDuration.WithLabelValues(t.renderer).Observe(time.Since(t.start).Seconds())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
