// Package handlers implements the HTTP API of the clip studio service:
// health and liveness probes, build information, and library access
// (listing, metadata, streamed downloads, rename, delete).
package handlers
