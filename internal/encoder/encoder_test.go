package encoder

import (
	"bytes"
	"strings"
	"testing"

	"clip-studio/internal/mediatypes"
)

func TestBuildArgsVideoOnly(t *testing.T) {
	s := NewSink(Options{
		Width: 1920, Height: 1080, FrameRate: 30,
		Format: mediatypes.FormatWebM,
		Codecs: mediatypes.CodecPair{Video: "libvpx-vp9"},
	}, nil)

	args := strings.Join(s.buildArgs(), " ")

	for _, want := range []string{
		"-f rawvideo", "-pix_fmt rgba", "-s 1920x1080", "-r 30",
		"-c:v libvpx-vp9", "-deadline realtime", "-f webm pipe:1",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "pipe:3") {
		t.Error("video-only sink must not wire an audio input")
	}
}

func TestBuildArgsWithAudio(t *testing.T) {
	s := NewSink(Options{
		Width: 1280, Height: 720, FrameRate: 30,
		Format:   mediatypes.FormatWebM,
		Codecs:   mediatypes.CodecPair{Video: "libvpx-vp9", Audio: "libopus"},
		HasAudio: true,
	}, nil)

	args := strings.Join(s.buildArgs(), " ")

	for _, want := range []string{
		"-f s16le", "-ar 48000", "-ac 2", "-i pipe:3", "-c:a libopus",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
}

func TestBuildArgsMP4IsFragmented(t *testing.T) {
	s := NewSink(Options{
		Width: 1280, Height: 720, FrameRate: 30,
		Format: mediatypes.FormatMP4,
		Codecs: mediatypes.CodecPair{Video: "libx264"},
	}, nil)

	args := strings.Join(s.buildArgs(), " ")
	if !strings.Contains(args, "frag_keyframe+empty_moov") {
		t.Errorf("MP4 sink must produce fragmented output: %s", args)
	}
}

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              H.264 / AVC / MPEG-4 AVC
 V....D libvpx               libvpx VP8
 V....D libvpx-vp9           libvpx VP9
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libopus              libopus Opus`

func TestParseEncoders(t *testing.T) {
	set := parseEncoders(sampleEncoders)

	for _, name := range []string{"libx264", "libvpx-vp9", "aac", "libopus"} {
		if !set[name] {
			t.Errorf("encoder %q not parsed", name)
		}
	}
	if set["V....D"] || set["="] {
		t.Error("header noise leaked into encoder set")
	}
}

func TestSelectCodecs(t *testing.T) {
	tests := []struct {
		name      string
		supported map[string]bool
		hasAudio  bool
		want      mediatypes.CodecPair
	}{
		{
			"full support with audio",
			map[string]bool{"libvpx-vp9": true, "libopus": true, "libx264": true, "aac": true},
			true,
			mediatypes.CodecPair{Video: "libvpx-vp9", Audio: "libopus"},
		},
		{
			"no opus degrades to x264+aac",
			map[string]bool{"libvpx-vp9": true, "libx264": true, "aac": true},
			true,
			mediatypes.CodecPair{Video: "libx264", Audio: "aac"},
		},
		{
			"video only",
			map[string]bool{"libvpx-vp9": true, "libopus": true},
			false,
			mediatypes.CodecPair{Video: "libvpx-vp9"},
		},
		{
			"empty probe falls back to top preference",
			map[string]bool{},
			true,
			mediatypes.CodecPair{Video: "libvpx-vp9", Audio: "libopus"},
		},
		{
			"empty probe video only",
			map[string]bool{},
			false,
			mediatypes.CodecPair{Video: "libvpx-vp9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectCodecs(tt.supported, tt.hasAudio); got != tt.want {
				t.Errorf("SelectCodecs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChunkPumpOrderAndBounds(t *testing.T) {
	data := make([]byte, ChunkSize*2+100)
	for i := range data {
		data[i] = byte(i)
	}

	var got []byte
	var sizes []int
	s := NewSink(Options{}, func(chunk []byte) {
		got = append(got, chunk...)
		sizes = append(sizes, len(chunk))
	})

	s.pump(bytes.NewReader(data))
	<-s.pumpDone

	if !bytes.Equal(got, data) {
		t.Fatal("reassembled chunks differ from input")
	}
	for _, n := range sizes {
		if n == 0 {
			t.Error("zero-length chunk delivered")
		}
		if n > ChunkSize {
			t.Errorf("chunk of %d bytes exceeds bound %d", n, ChunkSize)
		}
	}
	if s.ChunkCount() != uint64(len(sizes)) {
		t.Errorf("chunk count = %d, want %d", s.ChunkCount(), len(sizes))
	}
}

func TestContainerFor(t *testing.T) {
	if got := ContainerFor(mediatypes.CodecPair{Video: "libx264", Audio: "aac"}); got != mediatypes.FormatMP4 {
		t.Errorf("x264 container = %q, want mp4", got)
	}
	if got := ContainerFor(mediatypes.CodecPair{Video: "libvpx-vp9"}); got != mediatypes.FormatWebM {
		t.Errorf("vp9 container = %q, want webm", got)
	}
}
