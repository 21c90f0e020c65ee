package encoder

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"

	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
)

var (
	encodersOnce sync.Once
	encodersSet  map[string]bool
)

// SupportedEncoders returns the set of encoder names the local ffmpeg build
// offers. The probe runs once and is cached; on probe failure an empty set
// is returned and selection falls back to the first preference.
func SupportedEncoders(ctx context.Context) map[string]bool {
	encodersOnce.Do(func() {
		encodersSet = probeEncoders(ctx)
	})
	return encodersSet
}

func probeEncoders(ctx context.Context) map[string]bool {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		logging.Warn("ffmpeg encoder probe failed: %v", err)
		return map[string]bool{}
	}
	return parseEncoders(stdout.String())
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Lines look like " V....D libx264  H.264 / AVC ...".
func parseEncoders(out string) map[string]bool {
	set := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(out))
	body := false
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "------") {
			body = true
			continue
		}
		if !body {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			set[fields[1]] = true
		}
	}
	return set
}

// SelectCodecs picks the best mutually supported codec pairing for a live
// recording. Pairs carrying an audio codec are only eligible when the
// session has an audio track; the list degrades to video-only pairs and
// finally to the first preference when nothing matches the probe.
func SelectCodecs(supported map[string]bool, hasAudio bool) mediatypes.CodecPair {
	for _, pair := range mediatypes.RecordingPreferences {
		if (pair.Audio != "") != hasAudio {
			continue
		}
		if supported[pair.Video] && (pair.Audio == "" || supported[pair.Audio]) {
			return pair
		}
	}
	// Nothing matched with audio alignment: accept any supported video codec.
	for _, pair := range mediatypes.RecordingPreferences {
		if supported[pair.Video] {
			if !hasAudio {
				return mediatypes.CodecPair{Video: pair.Video}
			}
			return pair
		}
	}
	// Probe produced nothing useful; trust the top preference.
	pair := mediatypes.RecordingPreferences[0]
	if !hasAudio {
		pair.Audio = ""
	}
	return pair
}

// ContainerFor maps a recording codec pairing to its container format.
func ContainerFor(pair mediatypes.CodecPair) mediatypes.Format {
	switch pair.Video {
	case "libx264":
		return mediatypes.FormatMP4
	default:
		return mediatypes.FormatWebM
	}
}
