package timeline

// Bounds for the non-destructive edit parameters.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
	MaxZoom  = 8.0
)

// MusicAsset is an optional secondary audio source mixed under the clip
// audio. Exactly one of Data or URL is set.
type MusicAsset struct {
	Data []byte
	URL  string
}

// Empty reports whether no music asset is attached.
func (m MusicAsset) Empty() bool {
	return len(m.Data) == 0 && m.URL == ""
}

// EditorState owns the segment timeline plus the non-destructive parameters
// applied at export time. It is created when an editing session opens on a
// captured or loaded clip and mutated only through its setters, which clamp
// every value into its valid range.
type EditorState struct {
	Timeline *Timeline

	clipVolume  float64
	musicVolume float64
	speed       float64
	zoom        float64
	panX, panY  float64
	music       MusicAsset
}

// NewEditorState opens an editing session over a clip of the given duration.
func NewEditorState(sourceDuration float64) (*EditorState, error) {
	tl, err := New(sourceDuration)
	if err != nil {
		return nil, err
	}
	return &EditorState{
		Timeline:    tl,
		clipVolume:  1,
		musicVolume: 1,
		speed:       1,
		zoom:        1,
	}, nil
}

// ClipVolume returns the clip audio gain in [0,1].
func (e *EditorState) ClipVolume() float64 { return e.clipVolume }

// MusicVolume returns the background music gain in [0,1].
func (e *EditorState) MusicVolume() float64 { return e.musicVolume }

// Speed returns the playback speed multiplier.
func (e *EditorState) Speed() float64 { return e.speed }

// Zoom returns the zoom factor, always >= 1.
func (e *EditorState) Zoom() float64 { return e.zoom }

// Pan returns the normalized pan offsets, each in [-1,1].
func (e *EditorState) Pan() (x, y float64) { return e.panX, e.panY }

// Music returns the attached music asset, if any.
func (e *EditorState) Music() MusicAsset { return e.music }

// SetClipVolume sets the clip audio gain, clamped to [0,1].
func (e *EditorState) SetClipVolume(v float64) {
	e.clipVolume = clampFloat(v, 0, 1)
}

// SetMusicVolume sets the background music gain, clamped to [0,1].
func (e *EditorState) SetMusicVolume(v float64) {
	e.musicVolume = clampFloat(v, 0, 1)
}

// SetSpeed sets the playback speed multiplier, clamped to [MinSpeed,MaxSpeed].
func (e *EditorState) SetSpeed(v float64) {
	e.speed = clampFloat(v, MinSpeed, MaxSpeed)
}

// SetZoom sets the zoom factor, clamped to [1,MaxZoom].
func (e *EditorState) SetZoom(v float64) {
	e.zoom = clampFloat(v, 1, MaxZoom)
}

// SetPan sets the normalized pan offsets, each clamped to [-1,1].
func (e *EditorState) SetPan(x, y float64) {
	e.panX = clampFloat(x, -1, 1)
	e.panY = clampFloat(y, -1, 1)
}

// SetMusic attaches or clears the secondary audio asset.
func (e *EditorState) SetMusic(m MusicAsset) {
	e.music = m
}

// IsIdentity reports whether the edit leaves the source untouched: a single
// segment spanning the whole clip with unity volumes, speed and zoom, no
// pan, and no music. Identity edits qualify for the export fast path.
func (e *EditorState) IsIdentity() bool {
	segs := e.Timeline.Segments()
	if len(segs) != 1 {
		return false
	}
	full := segs[0].Start == 0 && segs[0].End == e.Timeline.SourceDuration()
	return full &&
		e.clipVolume == 1 &&
		e.speed == 1 &&
		e.zoom == 1 &&
		e.panX == 0 && e.panY == 0 &&
		e.music.Empty()
}
