package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
)

// ClipInfo describes a recorded or loaded clip.
type ClipInfo struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec,omitempty"`
	Container  string  `json:"container"`
}

// HasAudio reports whether the clip carries an audio stream.
func (c *ClipInfo) HasAudio() bool {
	return c.AudioCodec != ""
}

// Format maps the probed container to an output format, when it is one the
// exporter can target directly.
func (c *ClipInfo) Format() (mediatypes.Format, bool) {
	for _, name := range strings.Split(c.Container, ",") {
		if f, ok := mediatypes.ParseFormat(strings.TrimSpace(name)); ok {
			return f, true
		}
	}
	return "", false
}

// ffprobe JSON output shapes, limited to the fields we consume.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// File probes a media file on disk.
func File(ctx context.Context, path string) (*ClipInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parse(stdout.Bytes())
}

// Bytes probes an in-memory clip by spilling it to a temporary file first.
// ffprobe needs a seekable input to locate container metadata.
func Bytes(ctx context.Context, data []byte) (*ClipInfo, error) {
	tmp, err := os.CreateTemp("", "clip-studio-probe-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create probe temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to remove probe temp file %s: %v", filepath.Base(path), err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write probe temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close probe temp file: %w", err)
	}

	return File(ctx, path)
}

func parse(raw []byte) (*ClipInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ClipInfo{Container: out.Format.FormatName}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err == nil {
			info.Duration = d
		}
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}
