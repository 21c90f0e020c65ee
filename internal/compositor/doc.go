// Package compositor produces the continuously redrawn surface that layers
// a background beneath the live input video during capture and re-capture
// export.
package compositor
