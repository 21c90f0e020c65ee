package background

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"strings"
	"time"

	// Background image decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP background support

	"clip-studio/internal/logging"
	"clip-studio/internal/progress"
)

const (
	// MaxAssetBytes caps remote asset downloads. Backgrounds and music
	// tracks beyond this are rejected rather than buffered.
	MaxAssetBytes = 64 << 20

	fetchTimeout = 30 * time.Second
)

// imageContentTypes is the allowlist for remote background responses. A
// response outside this list is treated like a tainted cross-origin asset:
// recording with it would silently drop the requested background, so the
// session start must fail instead.
var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/heic": true,
	"image/heif": true,
	"image/avif": true,
}

// Background is a fully decoded background layer: either a flat color or an
// image. Exactly one of Image or the color is active.
type Background struct {
	Color color.NRGBA
	Image image.Image
}

// IsImage reports whether the background is image-backed.
func (b *Background) IsImage() bool {
	return b.Image != nil
}

// ParseColor parses a #rgb or #rrggbb hex color.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		r, g, b = r*17, g*17, b*17
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q: expected #rgb or #rrggbb", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Solid creates a flat-color background.
func Solid(c color.NRGBA) *Background {
	return &Background{Color: c}
}

// FetchImage downloads and fully decodes a remote background image. Any
// fetch, content-type or decode failure is fatal for the caller: a session
// that was asked for a background must never record silently without it.
func FetchImage(ctx context.Context, client *http.Client, url string) (*Background, error) {
	data, contentType, err := fetch(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("%w: background fetch: %v", progress.ErrRemoteAsset, err)
	}

	if !imageContentTypes[contentType] {
		return nil, fmt.Errorf("%w: disallowed background content type %q", progress.ErrRemoteAsset, contentType)
	}

	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: background decode: %v", progress.ErrRemoteAsset, err)
	}

	logging.Debug("Decoded background image %s: %dx%d", url, img.Bounds().Dx(), img.Bounds().Dy())
	return &Background{Image: img}, nil
}

// FetchMusic downloads a remote music track. Callers treat failures as
// non-fatal: export proceeds without the added track.
func FetchMusic(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	data, contentType, err := fetch(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("%w: music fetch: %v", progress.ErrRemoteAsset, err)
	}
	if strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "text/html") {
		return nil, fmt.Errorf("%w: unexpected music content type %q", progress.ErrRemoteAsset, contentType)
	}
	return data, nil
}

// decode tries the registered stdlib/x-image decoders first and falls back
// to libvips for formats they cannot handle (e.g. HEIC).
func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	if vipsImg, vipsErr := decodeWithVips(data); vipsErr == nil {
		return vipsImg, nil
	}

	return nil, err
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("failed to close asset response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > MaxAssetBytes {
		return nil, "", fmt.Errorf("asset exceeds %d byte limit", MaxAssetBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty response body")
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return data, strings.TrimSpace(strings.ToLower(contentType)), nil
}
