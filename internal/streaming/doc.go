/*
Package streaming provides timeout-protected writers for serving clip
blobs over HTTP.

A clip download can run to hundreds of megabytes, and a client that
stops draining its connection would otherwise pin an open blob file and
a goroutine for as long as the socket survives. TimeoutWriter wraps
http.ResponseWriter with per-write timeouts, idle detection, and an
absolute duration cap so stalled downloads are torn down promptly.

# Usage

The download handler streams straight from the blob file:

	clip, f, err := store.OpenBlob(r.Context(), id)
	if err != nil {
		// 404 / 500 handling
	}
	defer f.Close()

	config := streaming.DownloadConfig(clip.Size)
	err = streaming.StreamWithTimeout(r.Context(), w, f, config)
	if errors.Is(err, streaming.ErrClientGone) {
		return // client went away, not a server error
	}

DownloadConfig derives MaxDuration from the blob size at a 64 KiB/s
floor. For other streams use DefaultTimeoutWriterConfig and adjust:

	config := streaming.DefaultTimeoutWriterConfig()
	config.ChunkSize = 128 * 1024
	config.OnProgress = func(bytes int64, d time.Duration) {
		logging.Debug("streamed %d bytes in %v", bytes, d)
	}

# Errors

Three sentinels distinguish why a stream ended early, checkable with
errors.Is:

  - ErrWriteTimeout: a single write exceeded WriteTimeout (slow client)
  - ErrClientGone: the request context was canceled (disconnect)
  - ErrStreamCanceled: Close was called on the writer

# Behavior

Writes larger than ChunkSize are split so cancellation is noticed
between chunks, and each chunk is flushed when the underlying writer
supports http.Flusher. An idle checker goroutine cancels the stream
when no bytes move for IdleTimeout. TimeoutWriter is safe for
concurrent use, though a download normally has a single writer.
*/
package streaming
