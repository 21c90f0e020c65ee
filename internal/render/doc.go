// Package render exports an edited clip to its final container.
//
// A Job pairs the recorded source bytes with the segment timeline and the
// non-destructive edit parameters, and names the output format. Two
// renderers implement the same contract:
//
//   - FilterGraph drives a single ffmpeg invocation whose filter_complex
//     graph performs the trims, concat, crop, scale, canvas placement and
//     (for GIF) the two-pass palette.
//   - Recapture replays the kept segments, composing each decoded frame
//     onto the output canvas and feeding a fresh encoder sink, segment by
//     segment.
//
// Engine routes between them: an identity edit targeting the source's own
// container returns the source bytes unchanged, otherwise the filtergraph
// runs first and the re-capture path serves as the fallback. Both renderers
// share the same validation, duration math and layout, so their outputs
// agree on geometry and timing.
package render
