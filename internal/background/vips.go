package background

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"clip-studio/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library. Call once at startup; it is
// optional, and background decoding copes without it for common formats.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	var vipsLogLevel vips.LogLevel
	if logging.IsDebugEnabled() {
		vipsLogLevel = vips.LogLevelInfo
	} else {
		vipsLogLevel = vips.LogLevelError
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheFiles:    0,
		MaxCacheMem:      16 << 20,
		MaxCacheSize:     16,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized for background image decoding")
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized && vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
	}
}

// decodeWithVips decodes an image via libvips, covering formats the pure-Go
// decoders do not (HEIC, AVIF, large TIFF).
func decodeWithVips(data []byte) (image.Image, error) {
	vipsInitMutex.Lock()
	available := vipsAvailable
	vipsInitMutex.Unlock()

	if !available {
		return nil, fmt.Errorf("libvips not initialized")
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips decode: %w", err)
	}
	defer ref.Close()

	if err := ref.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return nil, fmt.Errorf("vips colorspace: %w", err)
	}

	encoded, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("vips roundtrip: %w", err)
	}
	return img, nil
}
