package render

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clip-studio/internal/background"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/probe"
	"clip-studio/internal/progress"
)

// FilterGraph renders a job in a single ffmpeg invocation built around a
// filter_complex graph: per-segment trims, concat, crop, scale, canvas
// placement and the two-pass GIF palette.
type FilterGraph struct {
	// FFmpegPath overrides the ffmpeg binary. Empty means "ffmpeg" on PATH.
	FFmpegPath string
}

// Name identifies the renderer in logs and metrics.
func (f *FilterGraph) Name() string { return "filtergraph" }

// Render runs the job end to end.
func (f *FilterGraph) Render(ctx context.Context, job *Job) ([]byte, error) {
	reporter := progress.NewReporter(job.OnProgress)
	reporter.Start()
	p, err := prepare(ctx, job, reporter)
	if err != nil {
		return nil, err
	}
	out, err := f.renderPrepared(ctx, p)
	if err != nil {
		return nil, err
	}
	reporter.Finish()
	return out, nil
}

func (f *FilterGraph) renderPrepared(ctx context.Context, p *params) ([]byte, error) {
	dir, err := os.MkdirTemp("", "clip-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "source"+extFor(p.info))
	if err := os.WriteFile(srcPath, p.job.Source, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}

	inputs := []string{"-i", srcPath}
	musicIndex, bgIndex := -1, -1

	if p.wantMusic() {
		musicPath := filepath.Join(dir, "music")
		if err := os.WriteFile(musicPath, p.music, 0o600); err != nil {
			return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
		}
		musicIndex = len(inputs) / 2
		inputs = append(inputs, "-i", musicPath)
	}

	if bg := p.job.Background; bg != nil && bg.IsImage() {
		bgPath := filepath.Join(dir, "background.png")
		if err := writePNG(bgPath, bg); err != nil {
			return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
		}
		bgIndex = len(inputs) / 2
		inputs = append(inputs, "-loop", "1", "-i", bgPath)
	}

	graph := BuildGraph(p, musicIndex, bgIndex)

	outPath := filepath.Join(dir, "out."+string(p.job.Format))
	args := append([]string{"-hide_banner", "-loglevel", "error", "-y",
		"-progress", "pipe:1", "-nostats"}, inputs...)
	args = append(args, "-filter_complex", graph.Script, "-map", graph.VideoOut)
	if graph.AudioOut != "" {
		args = append(args, "-map", graph.AudioOut)
	}
	args = append(args, codecArgs(p.job.Format)...)
	args = append(args, outPath)

	ffmpeg := f.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	stderr := newStderrTail()
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}

	logging.Debug("Filtergraph render: %d segments, %s -> %s, graph %d bytes",
		len(p.segments), p.info.Container, p.job.Format, len(graph.Script))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg start: %v", progress.ErrRenderFailed, err)
	}

	f.trackProgress(stdout, p)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", progress.ErrRenderFailed, err, stderr.Tail())
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", progress.ErrRenderFailed, err)
	}
	if len(out) == 0 {
		return nil, progress.ErrEmptyResult
	}
	return out, nil
}

// trackProgress parses ffmpeg's -progress key=value stream and reports the
// fraction of the edited duration produced so far.
func (f *FilterGraph) trackProgress(r io.Reader, p *params) {
	totalUS := p.editedDuration() * 1e6
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		val, ok := strings.CutPrefix(line, "out_time_us=")
		if !ok {
			continue
		}
		us, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || totalUS <= 0 {
			continue
		}
		p.reporter.Report(us / totalUS)
	}
}

// Graph is a built filter_complex script plus its output pad labels.
type Graph struct {
	Script   string
	VideoOut string
	AudioOut string
}

// BuildGraph assembles the filter_complex for the prepared job. musicIndex
// and bgIndex are ffmpeg input indices, -1 when absent.
func BuildGraph(p *params, musicIndex, bgIndex int) Graph {
	var b strings.Builder
	withClipAudio := p.wantClipAudio()

	// Per-segment trims, retimed to start at zero. Audio keeps pace via
	// atempo, valid for the whole clamped speed range.
	for i, seg := range p.segments {
		fmt.Fprintf(&b, "[0:v]trim=start=%s:end=%s,setpts=(PTS-STARTPTS)/%s[v%d];",
			ffNum(seg.Start), ffNum(seg.End), ffNum(p.speed), i)
		if withClipAudio {
			fmt.Fprintf(&b, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,atempo=%s[a%d];",
				ffNum(seg.Start), ffNum(seg.End), ffNum(p.speed), i)
		}
	}

	// Concat the kept segments.
	for i := range p.segments {
		fmt.Fprintf(&b, "[v%d]", i)
		if withClipAudio {
			fmt.Fprintf(&b, "[a%d]", i)
		}
	}
	audioStreams := 0
	if withClipAudio {
		audioStreams = 1
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=%d[vcat]", len(p.segments), audioStreams)
	if withClipAudio {
		b.WriteString("[acat]")
	}
	b.WriteString(";")

	// Zoom/pan crop, then scale to the placement size. Crop geometry is
	// already even and in-bounds.
	sr := p.layout.SourceRect
	dr := p.layout.DestRect
	fmt.Fprintf(&b, "[vcat]crop=%d:%d:%d:%d,scale=%d:%d[vfit];",
		sr.Dx(), sr.Dy(), sr.Min.X, sr.Min.Y, dr.Dx(), dr.Dy())

	// Place on the canvas: overlay on the scaled background image, or pad
	// with the flat color.
	if bgIndex >= 0 {
		fmt.Fprintf(&b, "[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d[bg];",
			bgIndex, p.canvasW, p.canvasH, p.canvasW, p.canvasH)
		fmt.Fprintf(&b, "[bg][vfit]overlay=%d:%d[canvas];", dr.Min.X, dr.Min.Y)
	} else {
		col := "black"
		if bg := p.job.Background; bg != nil {
			col = fmt.Sprintf("0x%02X%02X%02X", bg.Color.R, bg.Color.G, bg.Color.B)
		}
		fmt.Fprintf(&b, "[vfit]pad=%d:%d:%d:%d:color=%s[canvas];",
			p.canvasW, p.canvasH, dr.Min.X, dr.Min.Y, col)
	}

	videoOut := "[canvas]"
	if p.job.Format == mediatypes.FormatGIF {
		// Two-pass palette at the fixed GIF rate.
		fmt.Fprintf(&b, "[canvas]fps=%d,split[pv1][pv2];", GIFFrameRate)
		b.WriteString("[pv1]palettegen=stats_mode=diff[pal];")
		b.WriteString("[pv2][pal]paletteuse=dither=bayer[gif];")
		videoOut = "[gif]"
	}

	// Audio routing: clip audio at its gain, music trimmed to the edited
	// duration, mixed when both are present.
	audioOut := ""
	dur := p.editedDuration()
	switch {
	case withClipAudio && p.wantMusic():
		fmt.Fprintf(&b, "[acat]volume=%s[aclip];", ffNum(p.clipVolume))
		fmt.Fprintf(&b, "[%d:a]volume=%s,atrim=0:%s,asetpts=PTS-STARTPTS[mus];",
			musicIndex, ffNum(p.musicVolume), ffNum(dur))
		b.WriteString("[aclip][mus]amix=inputs=2:duration=shortest[aout];")
		audioOut = "[aout]"
	case withClipAudio:
		fmt.Fprintf(&b, "[acat]volume=%s[aout];", ffNum(p.clipVolume))
		audioOut = "[aout]"
	case p.wantMusic():
		fmt.Fprintf(&b, "[%d:a]volume=%s,atrim=0:%s,asetpts=PTS-STARTPTS[aout];",
			musicIndex, ffNum(p.musicVolume), ffNum(dur))
		audioOut = "[aout]"
	}

	script := strings.TrimSuffix(b.String(), ";")
	return Graph{Script: script, VideoOut: videoOut, AudioOut: audioOut}
}

// codecArgs maps the output format to encoder flags.
func codecArgs(format mediatypes.Format) []string {
	switch format {
	case mediatypes.FormatWebM:
		return []string{"-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "32",
			"-c:a", "libopus", "-b:a", "128k", "-f", "webm"}
	case mediatypes.FormatMP4:
		return []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23",
			"-pix_fmt", "yuv420p", "-c:a", "aac", "-b:a", "128k",
			"-movflags", "+faststart", "-f", "mp4"}
	case mediatypes.FormatGIF:
		return []string{"-an", "-f", "gif"}
	default:
		return nil
	}
}

// ffNum formats a float for a filter expression without trailing noise.
func ffNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func extFor(info *probe.ClipInfo) string {
	if f, ok := info.Format(); ok {
		return "." + string(f)
	}
	return ".bin"
}

func writePNG(path string, bg *background.Background) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, bg.Image)
}
