package mediatypes

import "strings"

// Format identifies a delivery container for exported recordings.
type Format string

const (
	// FormatWebM is the WebM container with VP9 video and Opus audio.
	FormatWebM Format = "webm"
	// FormatMP4 is the MP4 container with H.264 video and AAC audio.
	FormatMP4 Format = "mp4"
	// FormatGIF is the animated GIF image format. It carries no audio.
	FormatGIF Format = "gif"
)

// CodecPair names the video and audio codecs used for a container.
// Audio is empty for formats that carry no audio track.
type CodecPair struct {
	Video string
	Audio string
}

// Codecs maps each output format to its encoder pairing.
var Codecs = map[Format]CodecPair{
	FormatWebM: {Video: "libvpx-vp9", Audio: "libopus"},
	FormatMP4:  {Video: "libx264", Audio: "aac"},
	FormatGIF:  {Video: "gif"},
}

// MimeTypes maps output formats to their MIME types.
var MimeTypes = map[Format]string{
	FormatWebM: "video/webm",
	FormatMP4:  "video/mp4",
	FormatGIF:  "image/gif",
}

// RecordingPreferences is the descending preference list for live recording.
// Entries earlier in the list are tried first; pairs with an audio codec are
// preferred when the recorded stream has an audio track.
var RecordingPreferences = []CodecPair{
	{Video: "libvpx-vp9", Audio: "libopus"},
	{Video: "libvpx", Audio: "libopus"},
	{Video: "libx264", Audio: "aac"},
	{Video: "libvpx-vp9"},
	{Video: "libx264"},
}

// nativeVideoCodecs lists, per container, the probed video codec names that
// can be delivered in that container without re-encoding.
var nativeVideoCodecs = map[Format][]string{
	FormatWebM: {"vp9", "vp8"},
	FormatMP4:  {"h264"},
	FormatGIF:  {"gif"},
}

// NativeVideoCodec reports whether a probed video codec can be carried in
// the format unchanged.
func (f Format) NativeVideoCodec(codec string) bool {
	for _, c := range nativeVideoCodecs[f] {
		if c == codec {
			return true
		}
	}
	return false
}

// MimeType returns the MIME type for a format, or application/octet-stream
// when the format is unknown.
func (f Format) MimeType() string {
	if m, ok := MimeTypes[f]; ok {
		return m
	}
	return "application/octet-stream"
}

// HasAudio reports whether the format can carry an audio track.
func (f Format) HasAudio() bool {
	return f != FormatGIF
}

// Valid reports whether f is a known output format.
func (f Format) Valid() bool {
	_, ok := Codecs[f]
	return ok
}

// ParseFormat resolves a user-supplied format name or MIME type.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "webm", "video/webm":
		return FormatWebM, true
	case "mp4", "video/mp4":
		return FormatMP4, true
	case "gif", "image/gif":
		return FormatGIF, true
	}
	return "", false
}

// FormatForMime returns the output format whose MIME type matches the given
// content type, ignoring codec parameters (e.g. "video/webm;codecs=vp9").
func FormatForMime(mime string) (Format, bool) {
	base := mime
	if idx := strings.Index(base, ";"); idx != -1 {
		base = base[:idx]
	}
	return ParseFormat(strings.TrimSpace(base))
}
