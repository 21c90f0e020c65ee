package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clip-studio/internal/logging"
	"clip-studio/internal/metrics"
	"clip-studio/internal/progress"
)

const requestTimeout = 5 * time.Minute

// Client talks to the clip sharing service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the given service base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// Authenticate obtains an upload token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/auth", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", progress.ErrRemoteAsset, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: auth request: %v", progress.ErrRemoteAsset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth returned %s", progress.ErrRemoteAsset, resp.Status)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: auth response: %v", progress.ErrRemoteAsset, err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: auth response carried no token", progress.ErrRemoteAsset)
	}
	return body.Token, nil
}

// Upload sends a clip and returns its share URL. onProgress receives the
// fraction of the payload transmitted.
func (c *Client) Upload(ctx context.Context, data []byte, name, mimeType, token string, onProgress progress.Func) (string, error) {
	reporter := progress.NewReporter(onProgress)
	reporter.Start()

	body := &countingReader{
		r:        bytes.NewReader(data),
		total:    int64(len(data)),
		reporter: reporter,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/clips", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", progress.ErrRemoteAsset, err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Clip-Name", name)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: upload request: %v", progress.ErrRemoteAsset, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.UploadsTotal.WithLabelValues("unauthorized").Inc()
		return "", fmt.Errorf("%w: upload token rejected", progress.ErrRemoteAsset)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: upload returned %s", progress.ErrRemoteAsset, resp.Status)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: upload response: %v", progress.ErrRemoteAsset, err)
	}
	if out.URL == "" {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: upload response carried no url", progress.ErrRemoteAsset)
	}

	reporter.Finish()
	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadBytes.Observe(float64(len(data)))
	logging.Info("Uploaded clip %q (%d bytes) -> %s", name, len(data), out.URL)
	return out.URL, nil
}

// countingReader reports upload progress as the request body drains.
type countingReader struct {
	r        io.Reader
	total    int64
	sent     int64
	reporter *progress.Reporter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.total > 0 {
		c.sent += int64(n)
		c.reporter.Report(float64(c.sent) / float64(c.total))
	}
	return n, err
}
