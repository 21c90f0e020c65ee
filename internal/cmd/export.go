package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clip-studio/internal/background"
	"clip-studio/internal/library"
	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/memory"
	"clip-studio/internal/probe"
	"clip-studio/internal/render"
	"clip-studio/internal/startup"
	"clip-studio/internal/timeline"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	output          string
	format          string
	keep            string
	speed           float64
	clipVolume      float64
	musicVolume     float64
	music           string
	zoom            float64
	panX            float64
	panY            float64
	backgroundColor string
	backgroundImage string
	width           int
	height          int
	frameRate       int
}

var exportCmd = &cobra.Command{
	Use:   "export <clip-id>",
	Short: "Render a library clip to WebM, MP4, or GIF",
	Long: `Export a clip from the library, applying non-destructive edits:
kept segments, playback speed, volumes, zoom and pan, a background
fill, and an optional music track.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (defaults into the exports directory)")
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "webm", "output format: webm, mp4, or gif")
	exportCmd.Flags().StringVar(&exportFlags.keep, "keep", "", "kept segments as start-end[,start-end...] in seconds (default: whole clip)")
	exportCmd.Flags().Float64Var(&exportFlags.speed, "speed", 1, "playback speed multiplier")
	exportCmd.Flags().Float64Var(&exportFlags.clipVolume, "volume", 1, "clip audio volume (0-1)")
	exportCmd.Flags().Float64Var(&exportFlags.musicVolume, "music-volume", 1, "music volume (0-1)")
	exportCmd.Flags().StringVar(&exportFlags.music, "music", "", "music file or URL to mix under the clip audio")
	exportCmd.Flags().Float64Var(&exportFlags.zoom, "zoom", 1, "zoom factor")
	exportCmd.Flags().Float64Var(&exportFlags.panX, "pan-x", 0, "horizontal pan (-1 to 1)")
	exportCmd.Flags().Float64Var(&exportFlags.panY, "pan-y", 0, "vertical pan (-1 to 1)")
	exportCmd.Flags().StringVar(&exportFlags.backgroundColor, "background-color", "", "canvas fill color (#rrggbb)")
	exportCmd.Flags().StringVar(&exportFlags.backgroundImage, "background-image", "", "canvas background image URL")
	exportCmd.Flags().IntVar(&exportFlags.width, "width", 0, "output width (default source canvas)")
	exportCmd.Flags().IntVar(&exportFlags.height, "height", 0, "output height (default source canvas)")
	exportCmd.Flags().IntVar(&exportFlags.frameRate, "fps", 0, "output frame rate (default source rate)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	config := loadConfig()

	if err := startup.CheckFFmpeg(); err != nil {
		return fmt.Errorf("ffmpeg is required for export: %w", err)
	}

	format, ok := mediatypes.ParseFormat(exportFlags.format)
	if !ok {
		return fmt.Errorf("unknown format %q (want webm, mp4, or gif)", exportFlags.format)
	}

	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	clip, data, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	info, err := probe.Bytes(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("failed to probe clip: %w", err)
	}

	segments, err := parseKeep(exportFlags.keep, info.Duration)
	if err != nil {
		return err
	}

	edit, err := buildEdit(info.Duration)
	if err != nil {
		return err
	}

	job := &render.Job{
		Source:     data,
		SourceInfo: info,
		Segments:   segments,
		Edit:       edit,
		Format:     format,
		Width:      exportFlags.width,
		Height:     exportFlags.height,
		FrameRate:  exportFlags.frameRate,
		OnProgress: func(fraction float64) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rRendering: %3.0f%%", fraction*100)
		},
	}

	if exportFlags.backgroundImage != "" {
		defer setupImageDecoders()()
	}
	job.Background, err = buildBackground(cmd.Context())
	if err != nil {
		return err
	}

	if exportFlags.music != "" {
		asset, err := musicAsset(exportFlags.music)
		if err != nil {
			return err
		}
		edit.SetMusic(asset)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	out, err := render.NewEngine("", monitor).Render(cmd.Context(), job)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	outPath, err := resolveOutputPath(config, clip, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logging.Info("Exported clip %s to %s (%d bytes)", clip.ID, outPath, len(out))
	fmt.Fprintln(cmd.OutOrStdout(), outPath)
	return nil
}

// parseKeep turns "0-5,10-12.5" into ordered segments. Empty keeps the
// whole clip.
func parseKeep(keep string, duration float64) ([]timeline.Segment, error) {
	if keep == "" {
		return []timeline.Segment{{ID: "all", Start: 0, End: duration}}, nil
	}

	parts := strings.Split(keep, ",")
	segments := make([]timeline.Segment, 0, len(parts))
	for i, part := range parts {
		bounds := strings.SplitN(strings.TrimSpace(part), "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid segment %q (want start-end)", part)
		}
		start, err := strconv.ParseFloat(bounds[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segment start %q: %w", bounds[0], err)
		}
		end, err := strconv.ParseFloat(bounds[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segment end %q: %w", bounds[1], err)
		}
		if end <= start {
			return nil, fmt.Errorf("segment %q is empty or reversed", part)
		}
		segments = append(segments, timeline.Segment{
			ID:    "seg-" + strconv.Itoa(i),
			Start: start,
			End:   end,
		})
	}
	return segments, nil
}

// buildBackground resolves the background flags into a decoded layer. A
// requested background that cannot be loaded fails the export rather than
// rendering without it.
func buildBackground(ctx context.Context) (*background.Background, error) {
	switch {
	case exportFlags.backgroundImage != "":
		bg, err := background.FetchImage(ctx, nil, exportFlags.backgroundImage)
		if err != nil {
			return nil, fmt.Errorf("background image: %w", err)
		}
		return bg, nil
	case exportFlags.backgroundColor != "":
		col, err := background.ParseColor(exportFlags.backgroundColor)
		if err != nil {
			return nil, fmt.Errorf("invalid background color: %w", err)
		}
		return background.Solid(col), nil
	default:
		return nil, nil
	}
}

// musicAsset builds the edit's music attachment from the flag value: a
// remote URL is fetched at render time, anything else is read as a file.
func musicAsset(src string) (timeline.MusicAsset, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return timeline.MusicAsset{URL: src}, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return timeline.MusicAsset{}, fmt.Errorf("failed to read music file: %w", err)
	}
	return timeline.MusicAsset{Data: data}, nil
}

func buildEdit(duration float64) (*timeline.EditorState, error) {
	edit, err := timeline.NewEditorState(duration)
	if err != nil {
		return nil, err
	}
	edit.SetSpeed(exportFlags.speed)
	edit.SetClipVolume(exportFlags.clipVolume)
	edit.SetMusicVolume(exportFlags.musicVolume)
	edit.SetZoom(exportFlags.zoom)
	edit.SetPan(exportFlags.panX, exportFlags.panY)
	return edit, nil
}

func resolveOutputPath(config *startup.Config, clip *library.Clip, format mediatypes.Format) (string, error) {
	if exportFlags.output != "" {
		return exportFlags.output, nil
	}
	if !config.ExportsEnabled {
		return "", fmt.Errorf("exports directory unavailable; pass --output")
	}

	name := sanitizeFilename(clip.Name)
	if name == "" {
		name = clip.ID
	}
	return filepath.Join(config.ExportDir, name+"."+string(format)), nil
}

// sanitizeFilename keeps clip names safe as file names.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
