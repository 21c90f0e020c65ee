package progress

import "errors"

// Sentinel errors for capture and export operations. Callers classify
// failures with errors.Is; wrapped detail carries the underlying cause.
var (
	// ErrPermissionDenied indicates the user or OS refused access to a
	// capture device.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrDeviceNotFound indicates the requested capture device does not
	// exist or disappeared.
	ErrDeviceNotFound = errors.New("capture device not found")

	// ErrUnsupportedConfig indicates a capture device rejected the requested
	// stream configuration (format, sample rate, channel layout).
	ErrUnsupportedConfig = errors.New("capture configuration not supported")

	// ErrCaptureFailed is the generic device or stream failure.
	ErrCaptureFailed = errors.New("capture failed")

	// ErrCompositorInit indicates the background surface never reached a
	// live state, or a requested background asset could not be used.
	ErrCompositorInit = errors.New("compositor initialization failed")

	// ErrEncoding indicates an encoder sink reported a failure.
	ErrEncoding = errors.New("encoding error")

	// ErrNoDataCaptured indicates a session finished without delivering a
	// single data chunk.
	ErrNoDataCaptured = errors.New("no data captured")

	// ErrEmptyResult indicates the assembled recording has zero length.
	ErrEmptyResult = errors.New("assembled recording is empty")

	// ErrNoSegments indicates a render was requested with an empty timeline.
	ErrNoSegments = errors.New("no segments to render")

	// ErrRenderFailed indicates a transcode pipeline failure.
	ErrRenderFailed = errors.New("render failed")

	// ErrRemoteAsset indicates a remote music or background asset could not
	// be fetched or decoded.
	ErrRemoteAsset = errors.New("remote asset failed")
)
