package playback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"testing"

	"RPGMixer/model"
)

type recordingPersister struct {
	settings []model.Settings
	presets  []model.AmbiencePreset
	deleted  []string
	orders   map[string][]string
}

func (p *recordingPersister) SaveSettings(s model.Settings) { p.settings = append(p.settings, s) }

func (p *recordingPersister) SavePreset(ps model.AmbiencePreset) { p.presets = append(p.presets, ps) }

func (p *recordingPersister) DeletePreset(id string) { p.deleted = append(p.deleted, id) }

func (p *recordingPersister) SavePlaylistOrder(key string, ids []string) {
	if p.orders == nil {
		p.orders = map[string][]string{}
	}
	p.orders[key] = ids
}

func newTestStore(t *testing.T) (*Store, *recordingPersister) {
	t.Helper()
	n := 0
	p := &recordingPersister{}
	s := NewStore(p,
		WithRand(rand.New(rand.NewPCG(3, 5))),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}))
	return s, p
}

func ambience(id string) model.Track {
	return model.Track{ID: id, Name: id, Type: model.TrackAmbience}
}

func TestMasterVolumeClampedAndPersisted(t *testing.T) {
	s, p := newTestStore(t)
	s.SetContext("Horror")
	s.SetMasterVolume(140)
	if got := s.State().MasterVolume; got != 100 {
		t.Errorf("MasterVolume = %d, want 100", got)
	}
	s.SetMasterVolume(-3)
	if got := s.State().MasterVolume; got != 0 {
		t.Errorf("MasterVolume = %d, want 0", got)
	}
	last := p.settings[len(p.settings)-1]
	if last.MasterVolume != 0 || last.LastContext != "Horror" || last.ID != model.SettingsRowID {
		t.Errorf("persisted settings = %+v", last)
	}
}

func TestAmbienceLayerIntents(t *testing.T) {
	s, _ := newTestStore(t)
	rain := ambience("rain")
	a := s.PlayAmbience(rain, 250)
	b := s.PlayAmbience(rain, 30)
	if a == b {
		t.Fatal("layers of the same track need distinct instance ids")
	}
	if l, _ := s.State().Layer(a); l.Volume != 100 {
		t.Errorf("layer volume = %d, want clamped 100", l.Volume)
	}

	if err := s.ToggleAmbienceMute(b); err != nil {
		t.Fatal(err)
	}
	if l, _ := s.State().Layer(b); !l.Muted {
		t.Error("layer should be muted")
	}
	if err := s.SetAmbienceVolume("nope", 10); !errors.Is(err, ErrUnknownLayer) {
		t.Errorf("err = %v, want ErrUnknownLayer", err)
	}

	s.ReorderAmbience([]string{b, "ghost"})
	if got := s.State().Ambience; got[0].InstanceID != b || got[1].InstanceID != a {
		t.Errorf("reorder result = %v", got)
	}

	if err := s.StopAmbience(a); err != nil {
		t.Fatal(err)
	}
	if len(s.State().Ambience) != 1 {
		t.Errorf("layers = %d, want 1", len(s.State().Ambience))
	}
}

func TestToggleSFXTwice(t *testing.T) {
	s, _ := newTestStore(t)
	boom := model.Track{ID: "boom", Type: model.TrackSFX}

	s.ToggleSFX(boom)
	st := s.State()
	if !st.SFXActive("boom") {
		t.Fatal("boom should be active after first toggle")
	}
	if len(st.SFXRequests) != 1 || st.SFXRequests[0].TriggerID == 0 {
		t.Fatalf("requests = %+v", st.SFXRequests)
	}

	s.ToggleSFX(boom)
	if s.State().SFXActive("boom") {
		t.Error("boom should be inactive after second toggle")
	}
	if len(s.State().SFXRequests) != 1 {
		t.Error("deactivation must not request playback")
	}

	s.ToggleSFX(boom)
	reqs := s.State().SFXRequests
	if len(reqs) != 2 || reqs[1].TriggerID <= reqs[0].TriggerID {
		t.Errorf("retrigger should carry a newer trigger id: %+v", reqs)
	}
}

func TestSFXRequestBacklogBounded(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 100; i++ {
		s.ToggleSFX(model.Track{ID: fmt.Sprintf("fx-%d", i)})
	}
	reqs := s.State().SFXRequests
	if len(reqs) != maxSFXRequests {
		t.Fatalf("backlog = %d", len(reqs))
	}
	if reqs[len(reqs)-1].TriggerID != 100 {
		t.Errorf("newest trigger = %d, want 100", reqs[len(reqs)-1].TriggerID)
	}
}

func TestPresetRoundTripExcludesMute(t *testing.T) {
	s, p := newTestStore(t)
	rain, wind := ambience("rain"), ambience("wind")
	s.SetCatalog([]model.Track{rain, wind})
	s.SetContext("Fantasy")

	preset := model.AmbiencePreset{
		ID:   "p1",
		Name: "Storm",
		Tracks: model.PresetTrackList{
			{TrackID: "rain", Volume: 70},
			{TrackID: "missing", Volume: 20},
			{TrackID: "wind", Volume: 35},
		},
	}
	s.UpsertPreset(preset)
	s.PlayAmbience(rain, 10)
	s.LoadPreset(preset)

	st := s.State()
	if len(st.Ambience) != 2 || st.ActivePresetID != "p1" {
		t.Fatalf("after load: %+v", st.Ambience)
	}
	_ = s.ToggleAmbienceMute(st.Ambience[0].InstanceID)

	saved := s.SaveNewPreset("Copy")
	want := model.PresetTrackList{{TrackID: "rain", Volume: 70}, {TrackID: "wind", Volume: 35}}
	if !reflect.DeepEqual(saved.Tracks, want) {
		t.Errorf("saved pairs = %v, want %v", saved.Tracks, want)
	}
	if saved.Context != "Fantasy" || saved.Name != "Copy" {
		t.Errorf("saved preset = %+v", saved)
	}
	if s.State().ActivePresetID != saved.ID {
		t.Error("new preset should become active")
	}
	if len(p.presets) != 1 || p.presets[0].ID != saved.ID {
		t.Errorf("persisted presets = %+v", p.presets)
	}
}

func TestLoadPresetStartsUnmutedWithFreshIDs(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetCatalog([]model.Track{ambience("rain")})
	p := model.AmbiencePreset{ID: "p", Tracks: model.PresetTrackList{{TrackID: "rain", Volume: 40}}}

	s.LoadPreset(p)
	first := s.State().Ambience[0]
	_ = s.ToggleAmbienceMute(first.InstanceID)
	s.LoadPreset(p)
	second := s.State().Ambience[0]

	if second.Muted || second.InstanceID == first.InstanceID {
		t.Errorf("reload = %+v, previous %+v", second, first)
	}
}

func TestUpdateAndDeletePreset(t *testing.T) {
	s, p := newTestStore(t)
	if _, err := s.UpdateCurrentPreset(); !errors.Is(err, ErrNoActivePreset) {
		t.Errorf("err = %v, want ErrNoActivePreset", err)
	}

	s.PlayAmbience(ambience("rain"), 60)
	created := s.SaveNewPreset("Camp")
	s.SetContext("SciFi")
	s.PlayAmbience(ambience("fire"), 20)

	updated, err := s.UpdateCurrentPreset()
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID || updated.Name != "Camp" || updated.Context != "SciFi" || len(updated.Tracks) != 2 {
		t.Errorf("updated = %+v", updated)
	}

	if err := s.DeletePreset(created.ID); err != nil {
		t.Fatal(err)
	}
	if s.State().ActivePresetID != "" || len(s.State().Presets) != 0 {
		t.Error("delete should clear the active marker")
	}
	if len(p.deleted) != 1 || p.deleted[0] != created.ID {
		t.Errorf("deleted = %v", p.deleted)
	}
	if err := s.DeletePreset("gone"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("err = %v", err)
	}
}

func TestDropPresetDoesNotPersist(t *testing.T) {
	s, p := newTestStore(t)
	s.UpsertPreset(model.AmbiencePreset{ID: "p1", Name: "Storm"})
	s.LoadPreset(model.AmbiencePreset{ID: "p1", Name: "Storm"})

	s.DropPreset("p1")
	s.DropPreset("p1")
	if len(s.State().Presets) != 0 || s.State().ActivePresetID != "" {
		t.Errorf("state after drop = %+v", s.State())
	}
	if len(p.deleted) != 0 {
		t.Errorf("DropPreset persisted a delete: %v", p.deleted)
	}
}

func TestReorderPlaylistAffectsNextTrack(t *testing.T) {
	s, p := newTestStore(t)
	list := tracks("A", "B", "C")
	s.PlayMusic(list[0], list)
	if got := s.NextTrack(); got.ID != "B" {
		t.Fatalf("before reorder next = %s", got.ID)
	}

	key := model.MusicOrderKey("Fantasy", "Combate", "Jefe")
	s.ReorderPlaylist(key, []model.Track{list[0], list[2], list[1]})
	if got := s.NextTrack(); got.ID != "C" {
		t.Errorf("after reorder next = %s, want C", got.ID)
	}
	if !reflect.DeepEqual(p.orders[key], []string{"A", "C", "B"}) {
		t.Errorf("persisted order = %v", p.orders[key])
	}
}

func TestReorderOtherPlaylistKeepsContext(t *testing.T) {
	s, _ := newTestStore(t)
	list := tracks("A", "B")
	s.PlayMusic(list[0], list)
	s.ReorderPlaylist("k", tracks("X", "Y"))
	if got := s.NextTrack(); got.ID != "B" {
		t.Errorf("next = %s, want B", got.ID)
	}
}

func TestSeekRequestClears(t *testing.T) {
	s, _ := newTestStore(t)
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.RequestSeek(-4)
	if st := s.State(); st.Seek == nil || *st.Seek != 0 {
		t.Fatalf("seek = %v", st.Seek)
	}
	s.ClearSeek()
	if s.State().Seek != nil {
		t.Error("seek should be cleared")
	}
	if len(changes) != 1 || !changes[0].Has(ChangeSeek) {
		t.Errorf("changes = %v", changes)
	}
}

func TestListenerIntentsAreDeferred(t *testing.T) {
	s, _ := newTestStore(t)
	var rounds []Change
	depth := 0
	s.Subscribe(func(c Change) {
		depth++
		defer func() { depth-- }()
		if depth > 1 {
			t.Fatal("listener re-entered")
		}
		rounds = append(rounds, c)
		if c.Has(ChangeMusic) {
			s.SetMasterVolume(10)
		}
	})

	s.PlayMusic(tracks("A")[0], nil)
	if len(rounds) != 2 || !rounds[1].Has(ChangeMaster) {
		t.Errorf("rounds = %v", rounds)
	}
}

func TestPanicStop(t *testing.T) {
	s, _ := newTestStore(t)
	s.PlayMusic(tracks("A")[0], nil)
	s.PlayAmbience(ambience("rain"), 50)
	s.ToggleSFX(model.Track{ID: "boom"})

	s.PanicStop()
	st := s.State()
	if st.Music != nil || st.IsPlaying || len(st.Ambience) != 0 || len(st.ActiveSFX) != 0 {
		t.Errorf("state after panic = %+v", st)
	}
}

func TestHydrate(t *testing.T) {
	s, p := newTestStore(t)
	s.Hydrate(model.Settings{MasterVolume: 80, LastContext: "Horror"},
		[]model.AmbiencePreset{{ID: "p"}},
		model.PlaylistOrders{"k": {"a"}})

	st := s.State()
	if st.MasterVolume != 80 || st.Context != "Horror" || len(st.Presets) != 1 || st.Orders["k"][0] != "a" {
		t.Errorf("hydrated state = %+v", st)
	}
	if len(p.settings) != 0 {
		t.Error("hydration must not persist")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.PlayAmbience(ambience("rain"), 50)
	snap := s.Snapshot()
	_ = s.SetAmbienceVolume(id, 10)
	if snap.Ambience[0].Volume != 50 {
		t.Error("snapshot shares layer storage with the store")
	}
}
