package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"RPGMixer/core/audio"
	"RPGMixer/core/auth"
	"RPGMixer/core/mixer"
	"RPGMixer/core/playback"
	"RPGMixer/model"
)

const testSecret = "test-secret"

type testServer struct {
	repos   Repositories
	mixer   *mixer.Mixer
	backend *audio.MockBackend
	handler http.Handler
}

func testTracks() []model.Track {
	return []model.Track{
		{ID: "m1", Name: "Battle", URL: "music/Acción/Combate/battle.mp3", Type: model.TrackMusic, Category: "Acción", Subcategory: "Combate"},
		{ID: "m2", Name: "Chase", URL: "music/Acción/Combate/chase.mp3", Type: model.TrackMusic, Category: "Acción", Subcategory: "Combate"},
		{ID: "a1", Name: "Rain", URL: "ambience/rain.ogg", Type: model.TrackAmbience},
		{ID: "s1", Name: "Door", URL: "sfx/Entorno/door.wav", Type: model.TrackSFX, Category: "Entorno"},
	}
}

// newTestServer wires the router over memory repositories and a mixer on the
// mock backend. An empty secret turns auth off.
func newTestServer(t *testing.T, secret string, creds auth.Credentials) *testServer {
	t.Helper()
	repos := MemoryRepositories()
	tracks := testTracks()
	if err := repos.Tracks.SaveAll(t.Context(), tracks); err != nil {
		t.Fatal(err)
	}

	backend := audio.NewMock()
	m := mixer.New(backend, playback.NopPersister{}, time.Second)
	if err := m.Start(mixer.Snapshot{Tracks: tracks, Settings: model.DefaultSettings("Fantasy")}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)

	hub := NewStateHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := Handlers{
		Auth:        NewAuthHandler(secret, time.Hour, creds),
		Persistence: NewPersistenceHandler(repos.Tracks, repos.Presets, repos.Settings, repos.Orders, "Fantasy", m),
		Control:     NewControlHandler(m, hub),
	}
	return &testServer{repos: repos, mixer: m, backend: backend, handler: NewRouter(h)}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, testSecret, auth.Credentials{})

	rec := s.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	// preflight on a method-restricted, authenticated route
	rec = s.do(t, http.MethodOptions, "/api/settings", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
}

func TestTracksCRUD(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})

	var tracks []model.Track
	rec := s.do(t, http.MethodGet, "/api/tracks", nil, "")
	decode(t, rec, &tracks)
	if len(tracks) != 4 {
		t.Fatalf("listed %d tracks", len(tracks))
	}

	rec = s.do(t, http.MethodPost, "/api/tracks", model.Track{Name: " Tavern ", URL: "https://cdn.example/tavern.mp3", Type: model.TrackAmbience}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created model.Track
	decode(t, rec, &created)
	if created.ID == "" || created.Name != "Tavern" {
		t.Errorf("created = %+v", created)
	}

	catalog, err := s.mixer.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 5 {
		t.Errorf("mixer catalog has %d tracks after create", len(catalog))
	}

	rec = s.do(t, http.MethodGet, "/api/tracks/"+created.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/tracks/"+created.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/tracks/"+created.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestCreateTrackValidation(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})
	cases := []model.Track{
		{URL: "x.mp3", Type: model.TrackMusic},
		{Name: "No url", Type: model.TrackMusic},
		{Name: "Bad type", URL: "x.mp3", Type: "podcast"},
	}
	for _, tc := range cases {
		if rec := s.do(t, http.MethodPost, "/api/tracks", tc, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("create %+v status = %d", tc, rec.Code)
		}
	}
}

func TestPresetsMirroredIntoMixer(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})

	preset := model.AmbiencePreset{ID: "p1", Name: "Storm", Tracks: model.PresetTrackList{{TrackID: "a1", Volume: 70}}}
	if rec := s.do(t, http.MethodPost, "/api/presets", preset, ""); rec.Code != http.StatusOK {
		t.Fatalf("save preset status = %d", rec.Code)
	}
	st, err := s.mixer.State()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Presets) != 1 || st.Presets[0].Name != "Storm" {
		t.Errorf("mixer presets = %+v", st.Presets)
	}

	if rec := s.do(t, http.MethodDelete, "/api/presets/p1", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete preset status = %d", rec.Code)
	}
	st, _ = s.mixer.State()
	if len(st.Presets) != 0 {
		t.Errorf("mixer kept %d presets after delete", len(st.Presets))
	}
	stored, _ := s.repos.Presets.List(t.Context())
	if len(stored) != 0 {
		t.Errorf("repository kept %d presets", len(stored))
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})

	var got model.Settings
	decode(t, s.do(t, http.MethodGet, "/api/settings", nil, ""), &got)
	if got.MasterVolume != model.DefaultMasterVolume || got.LastContext != "Fantasy" {
		t.Errorf("default settings = %+v", got)
	}

	rec := s.do(t, http.MethodPut, "/api/settings", model.Settings{MasterVolume: 150, LastContext: "Fantasy"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out of range volume status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/settings", model.Settings{MasterVolume: 30, LastContext: "Grim Dark"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save settings status = %d", rec.Code)
	}
	decode(t, s.do(t, http.MethodGet, "/api/settings", nil, ""), &got)
	if got.MasterVolume != 30 || got.LastContext != "Grim Dark" {
		t.Errorf("saved settings = %+v", got)
	}
}

func TestPlaylistOrders(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})
	key := model.MusicOrderKey("Fantasy", "Acción", "Combate")

	if rec := s.do(t, http.MethodPut, "/api/playlist-orders/"+url.PathEscape(key), []string{"m2", "m1"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("save order status = %d", rec.Code)
	}
	var orders model.PlaylistOrders
	decode(t, s.do(t, http.MethodGet, "/api/playlist-orders", nil, ""), &orders)
	if ids := orders[key]; len(ids) != 2 || ids[0] != "m2" {
		t.Errorf("orders = %v", orders)
	}
}

func TestIntentEndpoint(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})

	rec := s.do(t, http.MethodPost, "/api/intents", mixer.Intent{Action: mixer.ActionPlayAmbience, TrackID: "a1"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("playAmbience status = %d: %s", rec.Code, rec.Body.String())
	}
	var res mixer.Result
	decode(t, rec, &res)
	if res.InstanceID == "" {
		t.Error("playAmbience returned no instance id")
	}

	var st playback.State
	decode(t, s.do(t, http.MethodGet, "/api/state", nil, ""), &st)
	if len(st.Ambience) != 1 || st.Ambience[0].InstanceID != res.InstanceID {
		t.Errorf("state ambience = %+v", st.Ambience)
	}
}

func TestIntentErrorStatus(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})
	cases := []struct {
		in   mixer.Intent
		want int
	}{
		{mixer.Intent{Action: "dance"}, http.StatusBadRequest},
		{mixer.Intent{Action: mixer.ActionPlayMusic}, http.StatusBadRequest},
		{mixer.Intent{Action: mixer.ActionPlayMusic, TrackID: "missing"}, http.StatusNotFound},
		{mixer.Intent{Action: mixer.ActionPlayMusic, TrackID: "a1"}, http.StatusBadRequest},
		{mixer.Intent{Action: mixer.ActionLoadPreset, PresetID: "missing"}, http.StatusNotFound},
		{mixer.Intent{Action: mixer.ActionUpdateCurrentPreset}, http.StatusConflict},
	}
	for _, tc := range cases {
		rec := s.do(t, http.MethodPost, "/api/intents", tc.in, "")
		if rec.Code != tc.want {
			t.Errorf("%+v: status = %d, want %d (%s)", tc.in, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestCatalogView(t *testing.T) {
	s := newTestServer(t, "", auth.Credentials{})
	var view CatalogView
	decode(t, s.do(t, http.MethodGet, "/api/catalog", nil, ""), &view)
	if view.Context != "Fantasy" {
		t.Errorf("context = %q", view.Context)
	}
	if len(view.Music) != 1 || len(view.Ambience) != 1 || len(view.SFX) != 1 {
		t.Errorf("view = %+v", view)
	}
}

func TestAuthRequired(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, testSecret, auth.Credentials{Operator: "gm", PasswordHash: hash})

	if rec := s.do(t, http.MethodGet, "/api/state", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/state", nil, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/token", TokenRequest{Operator: "gm", Password: "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/auth/token", TokenRequest{Operator: "gm", Password: "hunter2"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var resp TokenResponse
	decode(t, rec, &resp)
	if resp.Operator != "gm" || resp.Token == "" {
		t.Errorf("token response = %+v", resp)
	}

	if rec := s.do(t, http.MethodGet, "/api/state", nil, resp.Token); rec.Code != http.StatusOK {
		t.Errorf("with token status = %d", rec.Code)
	}

	// websocket-style query token
	req := httptest.NewRequest(http.MethodGet, "/api/state?token="+resp.Token, nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query token status = %d", rec.Code)
	}
}

func TestTokenLoginDisabledWithoutPassword(t *testing.T) {
	s := newTestServer(t, testSecret, auth.Credentials{Operator: "gm"})
	rec := s.do(t, http.MethodPost, "/api/auth/token", TokenRequest{Operator: "gm", Password: "x"}, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestOperatorFromContext(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, "gm", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	h := NewAuthHandler(testSecret, time.Hour, auth.Credentials{})
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OperatorFromContext(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	if seen != "gm" {
		t.Errorf("operator = %q", seen)
	}
}
