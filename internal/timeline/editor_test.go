package timeline

import "testing"

func TestEditorStateClamping(t *testing.T) {
	e, err := NewEditorState(10)
	if err != nil {
		t.Fatal(err)
	}

	e.SetClipVolume(1.7)
	if e.ClipVolume() != 1 {
		t.Errorf("clip volume = %v, want clamp to 1", e.ClipVolume())
	}
	e.SetClipVolume(-0.2)
	if e.ClipVolume() != 0 {
		t.Errorf("clip volume = %v, want clamp to 0", e.ClipVolume())
	}

	e.SetSpeed(5)
	if e.Speed() != MaxSpeed {
		t.Errorf("speed = %v, want clamp to %v", e.Speed(), MaxSpeed)
	}
	e.SetSpeed(0.1)
	if e.Speed() != MinSpeed {
		t.Errorf("speed = %v, want clamp to %v", e.Speed(), MinSpeed)
	}

	e.SetZoom(0.3)
	if e.Zoom() != 1 {
		t.Errorf("zoom = %v, want clamp to 1", e.Zoom())
	}

	e.SetPan(-4, 4)
	x, y := e.Pan()
	if x != -1 || y != 1 {
		t.Errorf("pan = (%v,%v), want (-1,1)", x, y)
	}
}

func TestIsIdentity(t *testing.T) {
	e, _ := NewEditorState(10)
	if !e.IsIdentity() {
		t.Fatal("fresh editor state should be an identity edit")
	}

	e.SetZoom(2)
	if e.IsIdentity() {
		t.Error("zoomed edit is not identity")
	}
	e.SetZoom(1)

	e.SetMusic(MusicAsset{URL: "https://example.com/track.mp3"})
	if e.IsIdentity() {
		t.Error("edit with music is not identity")
	}
	e.SetMusic(MusicAsset{})

	e.Timeline.Split(5)
	if e.IsIdentity() {
		t.Error("multi-segment edit is not identity")
	}
}

func TestMusicAssetEmpty(t *testing.T) {
	if !(MusicAsset{}).Empty() {
		t.Error("zero asset should be empty")
	}
	if (MusicAsset{Data: []byte{1}}).Empty() {
		t.Error("asset with data should not be empty")
	}
	if (MusicAsset{URL: "https://x/y.mp3"}).Empty() {
		t.Error("asset with URL should not be empty")
	}
}
