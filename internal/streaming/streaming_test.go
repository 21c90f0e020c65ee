package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultTimeoutWriterConfig(t *testing.T) {
	config := DefaultTimeoutWriterConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}

	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout=60s, got %v", config.IdleTimeout)
	}

	if config.MaxDuration != 0 {
		t.Errorf("Expected MaxDuration=0 (unlimited), got %v", config.MaxDuration)
	}

	if config.ChunkSize != 64*1024 {
		t.Errorf("Expected ChunkSize=64KB, got %d", config.ChunkSize)
	}

	if config.OnProgress != nil {
		t.Error("Expected OnProgress to be nil")
	}
}

func TestDownloadConfig(t *testing.T) {
	config := DownloadConfig(10 * 1024 * 1024)

	if config.MaxDuration <= 0 {
		t.Error("Expected a positive duration cap for a sized blob")
	}

	// 10 MiB at the 64 KiB/s floor plus grace.
	expected := time.Duration(10*1024*1024/(64*1024)+30) * time.Second
	if config.MaxDuration != expected {
		t.Errorf("Expected MaxDuration=%v, got %v", expected, config.MaxDuration)
	}

	if unsized := DownloadConfig(0); unsized.MaxDuration != 0 {
		t.Errorf("Expected no duration cap for unknown size, got %v", unsized.MaxDuration)
	}
}

func TestNewTimeoutWriter(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)

	if tw == nil {
		t.Fatal("NewTimeoutWriter returned nil")
	}

	if tw.bytesWritten != 0 {
		t.Errorf("Expected bytesWritten=0, got %d", tw.bytesWritten)
	}

	if tw.closed {
		t.Error("Expected closed=false")
	}

	tw.Close()
}

func TestTimeoutWriterWrite(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	data := []byte("webm clip payload")
	n, err := tw.Write(data)

	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	bytesWritten, _ := tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected bytes written=%d, got %d", len(data), bytesWritten)
	}

	if w.Body.Len() != len(data) {
		t.Errorf("Expected %d bytes in recorder, got %d", len(data), w.Body.Len())
	}
}

func TestTimeoutWriterClose(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)

	if err := tw.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}

	// Close is idempotent
	if err := tw.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}

	_, err := tw.Write([]byte("data"))
	if !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Expected ErrStreamCanceled after close, got %v", err)
	}
}

func TestTimeoutWriterContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	cancel()
	time.Sleep(10 * time.Millisecond)

	if _, err := tw.Write([]byte("late chunk")); err == nil {
		t.Error("Expected write to fail after context cancellation")
	}
}

func TestTimeoutWriterAccumulatesBytes(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	chunks := [][]byte{
		[]byte("header"),
		[]byte("cluster-1"),
		[]byte("cluster-2"),
	}

	total := int64(0)
	for _, chunk := range chunks {
		n, err := tw.Write(chunk)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		total += int64(n)

		bytesWritten, _ := tw.Stats()
		if bytesWritten != total {
			t.Errorf("Expected bytes written=%d, got %d", total, bytesWritten)
		}
	}
}

func TestTimeoutWriterStatsDuration(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	data := []byte("clip bytes")
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	bytesWritten, duration := tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected bytes written=%d, got %d", len(data), bytesWritten)
	}
	if duration < 50*time.Millisecond {
		t.Errorf("Duration should be at least 50ms, got %v", duration)
	}
}

func TestTimeoutWriterChunkedWrites(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()
	config.ChunkSize = 10

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i % 256)
	}

	n, err := tw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Error("Chunked write corrupted the payload")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{name: "ErrWriteTimeout", err: ErrWriteTimeout, msg: "write timeout exceeded"},
		{name: "ErrClientGone", err: ErrClientGone, msg: "client disconnected"},
		{name: "ErrStreamCanceled", err: ErrStreamCanceled, msg: "stream canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message=%q, got %q", tt.msg, tt.err.Error())
			}
		})
	}

	if errors.Is(ErrWriteTimeout, ErrClientGone) {
		t.Error("ErrWriteTimeout should not be ErrClientGone")
	}
	if errors.Is(ErrClientGone, ErrStreamCanceled) {
		t.Error("ErrClientGone should not be ErrStreamCanceled")
	}
}

func TestStreamWithTimeout(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()
	config.ChunkSize = 32

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	err := StreamWithTimeout(ctx, w, bytes.NewReader(payload), config)
	if err != nil {
		t.Fatalf("StreamWithTimeout failed: %v", err)
	}

	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("Streamed body does not match source payload")
	}
}

func TestStreamWithTimeoutCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	payload := make([]byte, 256*1024)

	err := StreamWithTimeout(ctx, w, bytes.NewReader(payload), DefaultTimeoutWriterConfig())
	if err == nil {
		t.Error("Expected error streaming with a canceled context")
	}
}

func TestTimeoutWriterConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	const numGoroutines = 5
	const writesPerGoroutine = 10

	done := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < writesPerGoroutine; j++ {
				data := []byte{byte(id), byte(j)}
				if _, err := tw.Write(data); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent write failed: %v", err)
		}
	}
}

func TestTimeoutWriterOnProgressCallback(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()

	config := DefaultTimeoutWriterConfig()
	config.OnProgress = func(bytes int64, duration time.Duration) {
		if bytes < 0 {
			t.Errorf("Expected non-negative bytes, got %d", bytes)
		}
		if duration < 0 {
			t.Errorf("Expected non-negative duration, got %v", duration)
		}
	}

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	// Over 1MB so the progress threshold is crossed at least once.
	data := make([]byte, 1024*1024+1)
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func BenchmarkTimeoutWriterWrite(b *testing.B) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()

	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	data := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tw.Write(data)
	}
}
