package audio

import "encoding/binary"

// Stream format shared by every PCM path in the recorder: interleaved
// signed 16-bit little-endian stereo at 48 kHz. Capture devices and decoded
// music assets are converted to this format before entering a mix graph.
const (
	SampleRate    = 48000
	Channels      = 2
	BytesPerFrame = Channels * 2
)

// Track is a gain-scaled PCM source feeding a mix.
type Track struct {
	PCM  []byte
	Gain float64
}

// DurationSeconds returns the playable length of a PCM buffer.
func DurationSeconds(pcm []byte) float64 {
	return float64(len(pcm)/BytesPerFrame) / SampleRate
}

// FrameCount returns the number of whole sample frames in a PCM buffer.
func FrameCount(pcm []byte) int {
	return len(pcm) / BytesPerFrame
}

// ApplyGain scales every sample by gain, clamping to the int16 range. A
// gain of 1 returns a copy; a gain of 0 returns silence of equal length.
func ApplyGain(pcm []byte, gain float64) []byte {
	out := make([]byte, len(pcm)-len(pcm)%2)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(out[i:], uint16(clampSample(float64(s)*gain)))
	}
	return out
}

// Mix sums the tracks sample-by-sample with their gains applied, truncating
// to the shortest track. With a single track this reduces to ApplyGain.
// An empty track list yields nil.
func Mix(tracks ...Track) []byte {
	live := tracks[:0:0]
	for _, tr := range tracks {
		if len(tr.PCM) >= BytesPerFrame {
			live = append(live, tr)
		}
	}
	if len(live) == 0 {
		return nil
	}

	frames := FrameCount(live[0].PCM)
	for _, tr := range live[1:] {
		if n := FrameCount(tr.PCM); n < frames {
			frames = n
		}
	}

	out := make([]byte, frames*BytesPerFrame)
	for i := 0; i < frames*Channels; i++ {
		var acc float64
		for _, tr := range live {
			s := int16(binary.LittleEndian.Uint16(tr.PCM[i*2:]))
			acc += float64(s) * tr.Gain
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clampSample(acc)))
	}
	return out
}

// TrimToDuration truncates a PCM buffer to at most seconds of audio,
// keeping whole sample frames.
func TrimToDuration(pcm []byte, seconds float64) []byte {
	if seconds <= 0 {
		return nil
	}
	maxFrames := int(seconds * SampleRate)
	if FrameCount(pcm) <= maxFrames {
		return pcm
	}
	return pcm[:maxFrames*BytesPerFrame]
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
