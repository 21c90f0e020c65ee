package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"clip-studio/internal/audio"
	"clip-studio/internal/compositor"
	"clip-studio/internal/logging"
)

// audioInput is a live PCM source: the microphone or the primary stream's
// audio capture.
type audioInput interface {
	Start() error
	Chunks() <-chan []byte
	Stop()
}

// EncoderSink is the slice of encoder.Sink the session drives. Tests
// substitute a fake.
type EncoderSink interface {
	Start(ctx context.Context) error
	WriteFrame(frame *image.NRGBA) error
	WriteAudio(pcm []byte) error
	Finish() error
	Abort()
}

// Session owns every resource of one active recording: the live source(s),
// the optional compositor surface, the audio graph and the encoder sink.
// The existence of a Session handle is the at-most-one-session invariant;
// Close releases everything together so a half-torn-down session is never
// observable.
type Session struct {
	source       Source
	pip          Source
	surface      *compositor.Surface
	primaryAudio audioInput
	mic          audioInput
	sink         EncoderSink

	chunksMu sync.Mutex
	chunks   [][]byte
	mimeType string

	cancel   context.CancelFunc
	pumpStop chan struct{}
	pumpWG   sync.WaitGroup

	closeOnce sync.Once
}

func newSession(cancel context.CancelFunc) *Session {
	return &Session{
		cancel:   cancel,
		pumpStop: make(chan struct{}),
	}
}

// appendChunk records one delivered chunk. Zero-size chunks are ignored.
func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunksMu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.chunksMu.Unlock()
}

// assemble concatenates all chunks in delivery order.
func (s *Session) assemble() (data []byte, count int) {
	s.chunksMu.Lock()
	defer s.chunksMu.Unlock()

	var total int
	for _, c := range s.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out, len(s.chunks)
}

// startRawPump feeds source frames straight to the sink at the source's
// frame rate. Used when no background compositing was requested.
func (s *Session) startRawPump() {
	s.pumpWG.Add(1)
	go func() {
		defer s.pumpWG.Done()
		ticker := time.NewTicker(time.Second / time.Duration(s.source.FrameRate()))
		defer ticker.Stop()

		for {
			select {
			case <-s.pumpStop:
				return
			case <-ticker.C:
				frame := s.source.Latest()
				if frame == nil {
					continue
				}
				if s.pip != nil {
					frame = overlayPIP(frame, s.pip.Latest())
				}
				if err := s.sink.WriteFrame(frame); err != nil {
					logging.Warn("raw frame pump: %v", err)
					return
				}
			}
		}
	}()
}

// startAudioPump mixes primary audio and microphone chunks into one track
// and feeds the sink. With one input it degrades to pass-through.
func (s *Session) startAudioPump() {
	if s.primaryAudio == nil && s.mic == nil {
		return
	}

	s.pumpWG.Add(1)
	go func() {
		defer s.pumpWG.Done()

		var primaryCh, micCh <-chan []byte
		if s.primaryAudio != nil {
			primaryCh = s.primaryAudio.Chunks()
		}
		if s.mic != nil {
			micCh = s.mic.Chunks()
		}

		var primaryBuf, micBuf []byte
		flush := time.NewTicker(20 * time.Millisecond)
		defer flush.Stop()

		for {
			select {
			case <-s.pumpStop:
				return
			case chunk, ok := <-primaryCh:
				if !ok {
					primaryCh = nil
					continue
				}
				primaryBuf = append(primaryBuf, chunk...)
			case chunk, ok := <-micCh:
				if !ok {
					micCh = nil
					continue
				}
				micBuf = append(micBuf, chunk...)
			case <-flush.C:
				out := s.drainMixed(&primaryBuf, &micBuf)
				if len(out) == 0 {
					continue
				}
				if err := s.sink.WriteAudio(out); err != nil {
					logging.Warn("audio pump: %v", err)
					return
				}
			}
		}
	}()
}

// drainMixed pulls the aligned prefix of both buffers and mixes it. When
// only one input has data the other contributes nothing and the data passes
// through unmixed.
func (s *Session) drainMixed(primaryBuf, micBuf *[]byte) []byte {
	hasPrimary := s.primaryAudio != nil
	hasMic := s.mic != nil

	switch {
	case hasPrimary && hasMic:
		n := minFrames(len(*primaryBuf), len(*micBuf))
		if n == 0 {
			return nil
		}
		p, m := (*primaryBuf)[:n], (*micBuf)[:n]
		*primaryBuf = (*primaryBuf)[n:]
		*micBuf = (*micBuf)[n:]
		return audio.Mix(
			audio.Track{PCM: p, Gain: 1},
			audio.Track{PCM: m, Gain: 1},
		)
	case hasPrimary:
		out := *primaryBuf
		*primaryBuf = nil
		return out
	default:
		out := *micBuf
		*micBuf = nil
		return out
	}
}

func minFrames(a, b int) int {
	n := a
	if b < n {
		n = b
	}
	return n - n%audio.BytesPerFrame
}

// stopPumps halts the frame and audio pumps and waits for them.
func (s *Session) stopPumps() {
	select {
	case <-s.pumpStop:
	default:
		close(s.pumpStop)
	}
	s.pumpWG.Wait()
}

// Close tears down every session resource together. Safe to call multiple
// times; only the first call acts.
func (s *Session) Close(abortSink bool) {
	s.closeOnce.Do(func() {
		s.stopPumps()

		if s.surface != nil {
			s.surface.Stop()
		}
		if s.mic != nil {
			s.mic.Stop()
		}
		if s.primaryAudio != nil {
			s.primaryAudio.Stop()
		}
		if s.pip != nil {
			s.pip.Stop()
		}
		if s.source != nil {
			s.source.Stop()
		}
		if s.sink != nil && abortSink {
			s.sink.Abort()
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
}
