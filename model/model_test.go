package model

import (
	"encoding/json"
	"testing"
)

func TestTrackVisibleIn(t *testing.T) {
	global := Track{ID: "g", Type: TrackMusic}
	fantasy := Track{ID: "f", Type: TrackMusic, Context: "Fantasy"}

	if !global.VisibleIn("Futurista") {
		t.Error("global track must be visible under every context")
	}
	if !fantasy.VisibleIn("Fantasy") {
		t.Error("tagged track must be visible under its own context")
	}
	if fantasy.VisibleIn("Futurista") {
		t.Error("tagged track must be hidden under other contexts")
	}
}

func TestParseTrackType(t *testing.T) {
	if got, err := ParseTrackType(" SFX "); err != nil || got != TrackSFX {
		t.Errorf("ParseTrackType(SFX) = %q, %v", got, err)
	}
	if _, err := ParseTrackType("video"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestResolveIconFallback(t *testing.T) {
	cases := []struct {
		track Track
		want  Icon
	}{
		{Track{Type: TrackAmbience, Icon: "flame"}, IconFire},
		{Track{Type: TrackAmbience, Icon: "does-not-exist"}, IconRain},
		{Track{Type: TrackSFX}, IconZap},
		{Track{Type: TrackMusic, Icon: "default"}, IconMusic},
		{Track{Type: "other"}, IconDefault},
	}
	for _, c := range cases {
		if got := ResolveIcon(c.track); got != c.want {
			t.Errorf("ResolveIcon(%+v) = %v, want %v", c.track, got, c.want)
		}
	}
}

func TestIconText(t *testing.T) {
	b, err := json.Marshal(map[string]Icon{"icon": IconSword})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"icon":"sword"}` {
		t.Errorf("marshal = %s", b)
	}
	var i Icon
	if err := i.UnmarshalText([]byte("nope")); err == nil {
		t.Error("expected error for unknown icon")
	}
	if Icon(99).String() != "default" {
		t.Error("out-of-range icon should print as default")
	}
}

func TestPresetTrackListScan(t *testing.T) {
	var l PresetTrackList
	if err := l.Scan([]byte(`[{"trackId":"a","volume":40}]`)); err != nil {
		t.Fatal(err)
	}
	if len(l) != 1 || l[0].TrackID != "a" || l[0].Volume != 40 {
		t.Errorf("scanned %+v", l)
	}
	if err := l.Scan(nil); err != nil || l != nil {
		t.Errorf("nil scan: %v %+v", err, l)
	}
	v, err := PresetTrackList(nil).Value()
	if err != nil || v != "[]" {
		t.Errorf("nil Value() = %v, %v", v, err)
	}
}

func TestOrderKeys(t *testing.T) {
	if got := MusicOrderKey("Fantasy", "Acción", "Combate"); got != "Fantasy.Acción.Combate" {
		t.Errorf("MusicOrderKey = %q", got)
	}
	if got := SFXOrderKey("Fantasy", "Magia"); got != "Fantasy.Magia" {
		t.Errorf("SFXOrderKey = %q", got)
	}

	o := PlaylistOrders{"k": {"a", "b"}}
	c := o.Clone()
	c["k"][0] = "z"
	if o["k"][0] != "a" {
		t.Error("Clone must not share slices")
	}
}
