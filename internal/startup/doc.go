// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Root data directory holding the library and exports (default: ~/.clip-studio)
//   - CAPTURE_WIDTH: Capture frame width in pixels, forced even (default: 1920)
//   - CAPTURE_HEIGHT: Capture frame height in pixels, forced even (default: 1080)
//   - CAPTURE_FPS: Capture frame rate (default: 30)
//   - SURFACE_WIDTH: Compositing surface width in pixels (default: 1920)
//   - SURFACE_HEIGHT: Compositing surface height in pixels (default: 1080)
//   - SURFACE_REFRESH: Compositing surface refresh rate (default: 30)
//   - PORT: Clip API server port for the serve command (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - SHARE_URL: Base URL of the sharing service; sharing is disabled when empty
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// Dimensions outside 16..7680 and rates outside 1..240 fall back to their
// defaults rather than failing startup.
//
// # Directory Setup
//
// The package validates and creates required directories under DATA_DIR:
//   - Library directory: Required, must be writable (clip database and blobs)
//   - Exports directory: Optional, enables transcoded exports if writable
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogLibraryInit]: Library store initialization timing
//   - [LogCaptureInit]: Capture setup and FFmpeg availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	// Initialize components...
//	startup.LogLibraryInit(libraryInitDuration)
//	startup.LogCaptureInit()
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerConfig{
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
