// Package encoder wraps ffmpeg as an encoder sink: it accepts raw video
// frames and PCM audio from a live pipeline and periodically emits encoded
// container chunks, selecting codecs from a descending preference list.
package encoder
