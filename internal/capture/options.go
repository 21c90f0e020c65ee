package capture

import "clip-studio/internal/mediatypes"

// Options is the immutable configuration snapshot consumed once at session
// start. It never changes mid-session.
type Options struct {
	// Audio requests an audio track from the primary capture.
	Audio bool
	// Camera selects the camera instead of the screen as the primary input.
	Camera bool
	// PIP overlays the camera as picture-in-picture during screen capture.
	PIP bool
	// AudioMixing mixes a microphone into the primary stream's audio.
	AudioMixing bool
	// BackgroundColor composites the subject over a flat color (#rrggbb).
	BackgroundColor string
	// BackgroundImageURL composites the subject over a remote image,
	// fetched and decoded fully before recording starts.
	BackgroundImageURL string
}

// HasBackground reports whether a compositor background was requested.
func (o Options) HasBackground() bool {
	return o.BackgroundColor != "" || o.BackgroundImageURL != ""
}

// Recording is an assembled capture result: the container bytes plus their
// MIME type.
type Recording struct {
	Data     []byte
	MimeType string
}

// Format resolves the recording's MIME type to an output format.
func (r *Recording) Format() (mediatypes.Format, bool) {
	return mediatypes.FormatForMime(r.MimeType)
}
