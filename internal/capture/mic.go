package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"clip-studio/internal/audio"
	"clip-studio/internal/logging"
)

// AudioCapture records PCM from a capture device (microphone or system
// loopback) in the shared stream format. Captured chunks are delivered on a
// bounded channel; when the consumer lags, the oldest chunk is dropped so
// live capture never blocks the audio callback.
type AudioCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	chunks chan []byte

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewAudioCapture initializes the default capture device.
func NewAudioCapture() (*AudioCapture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logging.Debug("malgo: %s", msg)
	})
	if err != nil {
		return nil, classifyDeviceError(fmt.Errorf("audio context init: %w", err))
	}

	a := &AudioCapture{
		ctx:    mctx,
		chunks: make(chan []byte, 64),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = audio.Channels
	cfg.SampleRate = audio.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			chunk := make([]byte, len(input))
			copy(chunk, input)
			select {
			case a.chunks <- chunk:
			default:
				// Consumer is behind: drop the oldest chunk.
				select {
				case <-a.chunks:
				default:
				}
				select {
				case a.chunks <- chunk:
				default:
				}
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		a.teardownContext()
		return nil, classifyDeviceError(fmt.Errorf("audio device init: %w", err))
	}
	a.device = device
	return a, nil
}

// Start begins capturing.
func (a *AudioCapture) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.device.Start(); err != nil {
		return classifyDeviceError(fmt.Errorf("audio device start: %w", err))
	}
	a.started = true
	logging.Info("Audio capture started: %d Hz, %d channels", audio.SampleRate, audio.Channels)
	return nil
}

// Chunks returns the delivery channel for captured PCM.
func (a *AudioCapture) Chunks() <-chan []byte {
	return a.chunks
}

// Stop halts capture and releases the device. Idempotent.
func (a *AudioCapture) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true

	if a.device != nil {
		a.device.Uninit()
	}
	a.teardownContext()
	close(a.chunks)
}

func (a *AudioCapture) teardownContext() {
	if a.ctx != nil {
		if err := a.ctx.Uninit(); err != nil {
			logging.Warn("audio context uninit: %v", err)
		}
		a.ctx.Free()
		a.ctx = nil
	}
}
