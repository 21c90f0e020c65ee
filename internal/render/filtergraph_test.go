package render

import (
	"context"
	"strings"
	"testing"

	"clip-studio/internal/background"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/progress"
	"clip-studio/internal/timeline"
)

func prepared(t *testing.T, job *Job) *params {
	t.Helper()
	p, err := prepare(context.Background(), job, progress.NewReporter(nil))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildGraphSegments(t *testing.T) {
	job := testJob(
		timeline.Segment{Start: 1, End: 3},
		timeline.Segment{Start: 5, End: 8},
	)
	g := BuildGraph(prepared(t, job), -1, -1)

	for _, want := range []string{
		"[0:v]trim=start=1:end=3,setpts=(PTS-STARTPTS)/1[v0]",
		"[0:a]atrim=start=1:end=3,asetpts=PTS-STARTPTS,atempo=1[a0]",
		"[0:v]trim=start=5:end=8,setpts=(PTS-STARTPTS)/1[v1]",
		"concat=n=2:v=1:a=1[vcat][acat]",
		"[acat]volume=1[aout]",
	} {
		if !strings.Contains(g.Script, want) {
			t.Errorf("graph missing %q:\n%s", want, g.Script)
		}
	}
	if g.AudioOut != "[aout]" {
		t.Errorf("AudioOut = %q", g.AudioOut)
	}
	if g.VideoOut != "[canvas]" {
		t.Errorf("VideoOut = %q", g.VideoOut)
	}
}

func TestBuildGraphSpeedRetiming(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	edit, _ := timeline.NewEditorState(10)
	edit.SetSpeed(2)
	job.Edit = edit
	g := BuildGraph(prepared(t, job), -1, -1)

	if !strings.Contains(g.Script, "setpts=(PTS-STARTPTS)/2") {
		t.Errorf("missing video retiming:\n%s", g.Script)
	}
	if !strings.Contains(g.Script, "atempo=2") {
		t.Errorf("missing audio retiming:\n%s", g.Script)
	}
}

func TestBuildGraphZeroVolumeDropsAudio(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	edit, _ := timeline.NewEditorState(10)
	edit.SetClipVolume(0)
	job.Edit = edit
	g := BuildGraph(prepared(t, job), -1, -1)

	if g.AudioOut != "" {
		t.Errorf("AudioOut = %q, want none", g.AudioOut)
	}
	if strings.Contains(g.Script, "concat=n=1:v=1:a=1") {
		t.Error("concat should carry no audio stream")
	}
}

func TestBuildGraphGIF(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Format = "gif"
	g := BuildGraph(prepared(t, job), -1, -1)

	for _, want := range []string{"fps=12", "palettegen", "paletteuse"} {
		if !strings.Contains(g.Script, want) {
			t.Errorf("graph missing %q:\n%s", want, g.Script)
		}
	}
	if g.VideoOut != "[gif]" {
		t.Errorf("VideoOut = %q, want [gif]", g.VideoOut)
	}
	if g.AudioOut != "" {
		t.Error("GIF output must not map audio")
	}
}

func TestBuildGraphMusicMix(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Music = []byte{1}
	g := BuildGraph(prepared(t, job), 1, -1)

	for _, want := range []string{
		"[1:a]volume=1,atrim=0:10",
		"amix=inputs=2:duration=shortest[aout]",
	} {
		if !strings.Contains(g.Script, want) {
			t.Errorf("graph missing %q:\n%s", want, g.Script)
		}
	}
}

func TestBuildGraphMusicOnly(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	job.Music = []byte{1}
	edit, _ := timeline.NewEditorState(10)
	edit.SetClipVolume(0)
	job.Edit = edit
	g := BuildGraph(prepared(t, job), 1, -1)

	if strings.Contains(g.Script, "amix") {
		t.Error("music-only path must not mix")
	}
	if g.AudioOut != "[aout]" {
		t.Errorf("AudioOut = %q", g.AudioOut)
	}
}

func TestBuildGraphSolidBackgroundPad(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	col, err := background.ParseColor("#336699")
	if err != nil {
		t.Fatal(err)
	}
	job.Background = background.Solid(col)
	g := BuildGraph(prepared(t, job), -1, -1)

	if !strings.Contains(g.Script, "color=0x336699") {
		t.Errorf("graph missing pad color:\n%s", g.Script)
	}
}

func TestBuildGraphImageBackgroundOverlay(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	g := BuildGraph(prepared(t, job), -1, 1)

	for _, want := range []string{
		"[1:v]scale=1920:1080:force_original_aspect_ratio=increase,crop=1920:1080[bg]",
		"overlay=",
	} {
		if !strings.Contains(g.Script, want) {
			t.Errorf("graph missing %q:\n%s", want, g.Script)
		}
	}
}

func TestBuildGraphCropGeometryEven(t *testing.T) {
	job := testJob(timeline.Segment{Start: 0, End: 10})
	edit, _ := timeline.NewEditorState(10)
	edit.SetZoom(3)
	edit.SetPan(0.7, -0.3)
	job.Edit = edit
	p := prepared(t, job)
	g := BuildGraph(p, -1, -1)

	sr := p.layout.SourceRect
	if sr.Dx()%2 != 0 || sr.Dy()%2 != 0 {
		t.Errorf("crop size %dx%d not even", sr.Dx(), sr.Dy())
	}
	if sr.Min.X%2 != 0 || sr.Min.Y%2 != 0 {
		t.Errorf("crop offset %d,%d not even", sr.Min.X, sr.Min.Y)
	}
	if !strings.Contains(g.Script, "crop=") {
		t.Errorf("graph missing crop:\n%s", g.Script)
	}
}

func TestCodecArgs(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"webm", []string{"libvpx-vp9", "libopus", "webm"}},
		{"mp4", []string{"libx264", "aac", "mp4"}},
		{"gif", []string{"-an", "gif"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			args := strings.Join(codecArgs(mediatypes.Format(tt.format)), " ")
			for _, w := range tt.want {
				if !strings.Contains(args, w) {
					t.Errorf("codecArgs(%s) missing %q: %s", tt.format, w, args)
				}
			}
		})
	}
}

func TestFFNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{2.5, "2.5"},
		{0.5, "0.5"},
		{1.0 / 3, "0.3333333333333333"},
	}
	for _, tt := range tests {
		if got := ffNum(tt.in); got != tt.want {
			t.Errorf("ffNum(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
