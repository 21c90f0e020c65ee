// Package audio implements the PCM mix graph used to combine the primary
// stream's audio with a microphone during capture, and the clip audio with
// background music during re-capture export.
package audio
