// Package background loads the compositor background layer: flat colors,
// remote background images (fully decoded before compositing starts), and
// remote music tracks. Background failures are fatal for session start;
// music failures are not.
package background
