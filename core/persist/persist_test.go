package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RPGMixer/core/playback"
	"RPGMixer/model"
	"RPGMixer/repository"
)

type recorded struct {
	method, path, auth string
	body               json.RawMessage
}

func newRecorder(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recorded{r.Method, r.URL.Path, r.Header.Get("Authorization"), body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestClientPersistsInOrder(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusOK)
	c := NewClient(srv.URL+"/", "tok", time.Second)
	defer c.Close()

	c.SaveSettings(model.Settings{MasterVolume: 30, LastContext: "Fantasy"})
	c.SavePreset(model.AmbiencePreset{ID: "p1", Name: "Tavern"})
	c.DeletePreset("p 1")
	c.SavePlaylistOrder("Fantasy.Acción.Combate", []string{"b", "a"})
	c.Flush()

	got := calls()
	want := []struct{ method, path string }{
		{http.MethodPut, "/api/settings"},
		{http.MethodPost, "/api/presets"},
		{http.MethodDelete, "/api/presets/p 1"},
		{http.MethodPut, "/api/playlist-orders/Fantasy.Acción.Combate"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d calls, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].method != w.method || got[i].path != w.path {
			t.Errorf("call %d = %s %s, want %s %s", i, got[i].method, got[i].path, w.method, w.path)
		}
		if got[i].auth != "Bearer tok" {
			t.Errorf("call %d auth = %q", i, got[i].auth)
		}
	}
	var ids []string
	if err := json.Unmarshal(got[3].body, &ids); err != nil || !reflect.DeepEqual(ids, []string{"b", "a"}) {
		t.Errorf("order body = %s (%v)", got[3].body, err)
	}
}

func TestClientFailureIsSwallowed(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusInternalServerError)
	c := NewClient(srv.URL, "", time.Second)
	defer c.Close()

	var p playback.Persister = c
	p.SaveSettings(model.Settings{MasterVolume: 10})
	c.Flush()
	if len(calls()) != 1 {
		t.Error("failed call should be attempted exactly once")
	}
}

func TestClientFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tracks", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Track{{ID: "t1", Name: "Rain", Type: model.TrackAmbience}})
	})
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.Settings{MasterVolume: 70, LastContext: "Futurista"})
	})
	mux.HandleFunc("/api/playlist-orders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.PlaylistOrders{"k": {"x"}})
	})
	mux.HandleFunc("/api/presets", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	defer c.Close()
	ctx := context.Background()

	tracks, err := c.FetchTracks(ctx)
	if err != nil || len(tracks) != 1 || tracks[0].Type != model.TrackAmbience {
		t.Errorf("FetchTracks = %v, %v", tracks, err)
	}
	s, err := c.FetchSettings(ctx)
	if err != nil || s.MasterVolume != 70 || s.LastContext != "Futurista" {
		t.Errorf("FetchSettings = %+v, %v", s, err)
	}
	orders, err := c.FetchOrders(ctx)
	if err != nil || !reflect.DeepEqual(orders["k"], []string{"x"}) {
		t.Errorf("FetchOrders = %v, %v", orders, err)
	}
	if _, err := c.FetchPresets(ctx); err == nil {
		t.Error("expected an error for a 502 response")
	}
}

func TestRepositoriesPersister(t *testing.T) {
	settings := repository.NewMemorySettingsRepository()
	presets := repository.NewMemoryPresetRepository()
	orders := repository.NewMemoryOrderRepository()
	r := NewRepositories(settings, presets, orders, time.Second)
	defer r.Close()

	r.SaveSettings(model.Settings{MasterVolume: 80, LastContext: "Grim Dark"})
	r.SavePreset(model.AmbiencePreset{ID: "p1", Name: "Storm", Tracks: model.PresetTrackList{{TrackID: "a", Volume: 40}}})
	r.SavePreset(model.AmbiencePreset{ID: "p2", Name: "Camp"})
	r.DeletePreset("p2")
	r.SavePlaylistOrder("k", []string{"2", "1"})
	r.Flush()

	ctx := context.Background()
	s, _ := settings.Get(ctx)
	if s == nil || s.MasterVolume != 80 || s.ID != model.SettingsRowID {
		t.Errorf("settings = %+v", s)
	}
	list, _ := presets.List(ctx)
	if len(list) != 1 || list[0].ID != "p1" || list[0].Tracks[0].Volume != 40 {
		t.Errorf("presets = %+v", list)
	}
	all, _ := orders.All(ctx)
	if !reflect.DeepEqual(all["k"], []string{"2", "1"}) {
		t.Errorf("orders = %v", all)
	}
}

type failingSettings struct{ calls int }

func (f *failingSettings) Get(context.Context) (*model.Settings, error) { return nil, nil }

func (f *failingSettings) Save(context.Context, *model.Settings) error {
	f.calls++
	return errors.New("db down")
}

func TestQueueClosedDropsCalls(t *testing.T) {
	fs := &failingSettings{}
	r := NewRepositories(fs, repository.NewMemoryPresetRepository(), repository.NewMemoryOrderRepository(), time.Second)
	r.SaveSettings(model.Settings{})
	r.Close()
	r.SaveSettings(model.Settings{})
	r.Flush()
	if fs.calls != 1 {
		t.Errorf("Save called %d times, want 1", fs.calls)
	}
}

type countingSettings struct {
	calls atomic.Int32
}

func (c *countingSettings) Get(context.Context) (*model.Settings, error) { return nil, nil }

func (c *countingSettings) Save(context.Context, *model.Settings) error {
	c.calls.Add(1)
	return nil
}

func TestQueueSubmitRacingClose(t *testing.T) {
	cs := &countingSettings{}
	r := NewRepositories(cs, repository.NewMemoryPresetRepository(), repository.NewMemoryOrderRepository(), time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.SaveSettings(model.Settings{MasterVolume: j})
			}
		}()
	}
	r.Close()
	wg.Wait()

	done := make(chan struct{})
	go func() {
		r.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Flush blocked on a call accepted after Close")
	}

	// nothing runs once Close has returned
	before := cs.calls.Load()
	r.SaveSettings(model.Settings{})
	r.Flush()
	if after := cs.calls.Load(); after != before {
		t.Errorf("calls after close: %d -> %d", before, after)
	}
}
