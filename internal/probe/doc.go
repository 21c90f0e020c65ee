// Package probe extracts duration, dimension and codec information from
// media files and in-memory clips via ffprobe.
package probe
