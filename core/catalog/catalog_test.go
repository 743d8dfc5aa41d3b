package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"RPGMixer/core/playback"
	"RPGMixer/model"
)

func sample() []model.Track {
	return []model.Track{
		{ID: "m1", Type: model.TrackMusic, Category: "Acción", Subcategory: "Combate"},
		{ID: "m2", Type: model.TrackMusic, Category: "Acción", Subcategory: "Combate", Context: "Fantasy"},
		{ID: "m3", Type: model.TrackMusic, Category: "Acción", Subcategory: "Combate", Context: "Futurista"},
		{ID: "m4", Type: model.TrackMusic},
		{ID: "m5", Type: model.TrackMusic, Category: "Homebrew", Subcategory: "Bard"},
		{ID: "a1", Type: model.TrackAmbience, Context: "Fantasy"},
		{ID: "a2", Type: model.TrackAmbience, Context: "Grim Dark"},
		{ID: "s1", Type: model.TrackSFX, Category: "Magia"},
		{ID: "s2", Type: model.TrackSFX, Category: "Combate"},
		{ID: "s3", Type: model.TrackSFX, Category: "Combate"},
	}
}

func TestVisibleIncludesGlobal(t *testing.T) {
	got := playback.TrackIDs(Visible(sample(), "Fantasy"))
	for _, id := range got {
		if id == "m3" || id == "a2" {
			t.Errorf("%s belongs to another context", id)
		}
	}
	if ids := playback.TrackIDs(Ambience(sample(), "Fantasy")); !reflect.DeepEqual(ids, []string{"a1"}) {
		t.Errorf("ambience = %v", ids)
	}
}

func TestMusicGroupsOrdering(t *testing.T) {
	orders := model.PlaylistOrders{
		model.MusicOrderKey("Fantasy", "Acción", "Combate"): {"m2", "m1"},
	}
	groups := MusicGroups(sample(), "Fantasy", orders)

	var heads []string
	for _, g := range groups {
		heads = append(heads, g.Category+"/"+g.Subcategory)
	}
	want := []string{"General/General", "Acción/Combate", "Homebrew/Bard"}
	if !reflect.DeepEqual(heads, want) {
		t.Fatalf("groups = %v, want %v", heads, want)
	}
	if ids := playback.TrackIDs(groups[1].Tracks); !reflect.DeepEqual(ids, []string{"m2", "m1"}) {
		t.Errorf("ordered group = %v", ids)
	}
	if groups[1].OrderKey != "Fantasy.Acción.Combate" {
		t.Errorf("order key = %q", groups[1].OrderKey)
	}
}

func TestSFXGroups(t *testing.T) {
	orders := model.PlaylistOrders{"Fantasy.Combate": {"s3"}}
	groups := SFXGroups(sample(), "Fantasy", orders)
	if len(groups) != 2 || groups[0].Category != "Combate" || groups[1].Category != "Magia" {
		t.Fatalf("groups = %+v", groups)
	}
	if ids := playback.TrackIDs(groups[0].Tracks); !reflect.DeepEqual(ids, []string{"s3", "s2"}) {
		t.Errorf("combat grid = %v", ids)
	}
}

func TestPlaylistFor(t *testing.T) {
	tracks := sample()
	got := playback.TrackIDs(PlaylistFor(tracks, tracks[0], "Fantasy", nil))
	if !reflect.DeepEqual(got, []string{"m1", "m2"}) {
		t.Errorf("playlist = %v", got)
	}
	lone := model.Track{ID: "x"}
	if got := PlaylistFor(tracks, lone, "Fantasy", nil); len(got) != 1 || got[0].ID != "x" {
		t.Errorf("unknown track playlist = %v", got)
	}
}

func TestMerge(t *testing.T) {
	base := []model.Track{{ID: "a", Name: "old"}, {ID: "b"}}
	extra := []model.Track{{ID: "c"}, {ID: "a", Name: "new"}}
	got := Merge(base, extra)
	if ids := playback.TrackIDs(got); !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("merge ids = %v", ids)
	}
	if got[0].Name != "new" {
		t.Error("extra should replace base entries")
	}
}

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScannerInfersMetadata(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "music/Acción/Combate/war_drums.mp3")
	writeFile(t, root, "music/Acción/theme.ogg")
	writeFile(t, root, "music/intro.wav")
	writeFile(t, root, "music/Acción/Combate/deep/nested_song.flac")
	writeFile(t, root, "ambience/heavy_rain.ogg")
	writeFile(t, root, "sfx/Magia/fire_ball.wav")
	writeFile(t, root, "sfx/Magia/notes.txt")

	tracks, err := Scanner{Root: root}.Scan()
	if err != nil {
		t.Fatal(err)
	}
	byURL := map[string]model.Track{}
	for _, tr := range tracks {
		byURL[tr.URL] = tr
	}
	if len(byURL) != 6 {
		t.Fatalf("scanned %d tracks: %v", len(byURL), byURL)
	}

	cases := []struct {
		url, name, cat, sub string
		typ                 model.TrackType
	}{
		{"music/Acción/Combate/war_drums.mp3", "War Drums", "Acción", "Combate", model.TrackMusic},
		{"music/Acción/theme.ogg", "Theme", "Acción", General, model.TrackMusic},
		{"music/intro.wav", "Intro", General, General, model.TrackMusic},
		{"music/Acción/Combate/deep/nested_song.flac", "Nested Song", "Acción", "Combate", model.TrackMusic},
		{"ambience/heavy_rain.ogg", "Heavy Rain", General, "", model.TrackAmbience},
		{"sfx/Magia/fire_ball.wav", "Fire Ball", "Magia", "", model.TrackSFX},
	}
	for _, tc := range cases {
		tr, ok := byURL[tc.url]
		if !ok {
			t.Errorf("%s not scanned", tc.url)
			continue
		}
		if tr.Name != tc.name || tr.Category != tc.cat || tr.Subcategory != tc.sub || tr.Type != tc.typ {
			t.Errorf("%s = %+v", tc.url, tr)
		}
		if !tr.IsGlobal() {
			t.Errorf("%s should be global", tc.url)
		}
		if tr.ID != TrackID(tc.url) {
			t.Errorf("%s id not derived from path", tc.url)
		}
	}

	again, _ := Scanner{Root: root}.Scan()
	if !reflect.DeepEqual(playback.TrackIDs(again), playback.TrackIDs(tracks)) {
		t.Error("rescan changed ids")
	}
}

func TestScannerMissingTypeDirs(t *testing.T) {
	tracks, err := Scanner{Root: t.TempDir()}.Scan()
	if err != nil || len(tracks) != 0 {
		t.Errorf("empty tree: %v, %v", tracks, err)
	}
}

func TestFromPathsMatchesScanner(t *testing.T) {
	keys := []string{
		"sfx/Magia/fireball.wav",
		"music/Acción/Combate/war_drums.mp3",
		"cover.png",
		"videos/intro.mp3",
		"ambience/rain.ogg",
	}
	tracks := FromPaths(keys)
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}
	if tracks[0].URL != "ambience/rain.ogg" || tracks[0].Category != General {
		t.Errorf("ambience track = %+v", tracks[0])
	}
	war := tracks[1]
	if war.ID != TrackID("music/Acción/Combate/war_drums.mp3") || war.Subcategory != "Combate" {
		t.Errorf("music track = %+v", war)
	}
	if tracks[2].Type != model.TrackSFX || tracks[2].Category != "Magia" {
		t.Errorf("sfx track = %+v", tracks[2])
	}
}

func TestWatcherCoalescesChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "music/a.mp3")

	w, err := NewWatcher(root, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	writeFile(t, root, "music/b.mp3")
	writeFile(t, root, "music/c.mp3")

	select {
	case <-w.Changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-w.Changes:
		t.Error("burst should coalesce into one notification")
	case <-time.After(150 * time.Millisecond):
	}
}
