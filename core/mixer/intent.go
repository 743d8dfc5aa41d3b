package mixer

import (
	"errors"
	"fmt"

	"RPGMixer/core/catalog"
	"RPGMixer/core/playback"
	"RPGMixer/model"
)

// Intent actions accepted by Apply.
const (
	ActionSetContext          = "setContext"
	ActionSetMasterVolume     = "setMasterVolume"
	ActionPlayMusic           = "playMusic"
	ActionResumeMusic         = "resumeMusic"
	ActionPauseMusic          = "pauseMusic"
	ActionStopMusic           = "stopMusic"
	ActionSetPlaybackMode     = "setPlaybackMode"
	ActionRequestSeek         = "requestSeek"
	ActionPlayAmbience        = "playAmbience"
	ActionStopAmbience        = "stopAmbience"
	ActionSetAmbienceVolume   = "setAmbienceVolume"
	ActionToggleAmbienceMute  = "toggleAmbienceMute"
	ActionReorderAmbience     = "reorderAmbience"
	ActionToggleSFX           = "toggleSFX"
	ActionLoadPreset          = "loadPreset"
	ActionSaveNewPreset       = "saveNewPreset"
	ActionUpdateCurrentPreset = "updateCurrentPreset"
	ActionDeletePreset        = "deletePreset"
	ActionReorderPlaylist     = "reorderPlaylist"
	ActionPanic               = "panic"
)

// DefaultAmbienceVolume is used by playAmbience when no volume is given.
const DefaultAmbienceVolume = 50

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownTrack  = errors.New("unknown track")
	ErrWrongType     = errors.New("track has the wrong type")
	ErrMissingField  = errors.New("missing field")
)

// Intent is one user command against the store, as sent by the HTTP API and the console.
type Intent struct {
	Action      string   `json:"action"`
	TrackID     string   `json:"trackId,omitempty"`
	InstanceID  string   `json:"instanceId,omitempty"`
	PresetID    string   `json:"presetId,omitempty"`
	Context     string   `json:"context,omitempty"`
	Name        string   `json:"name,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Key         string   `json:"key,omitempty"`
	Volume      *int     `json:"volume,omitempty"`
	Seconds     float64  `json:"seconds,omitempty"`
	TrackIDs    []string `json:"trackIds,omitempty"`
	InstanceIDs []string `json:"instanceIds,omitempty"`
}

// Result carries what an intent created, if anything.
type Result struct {
	InstanceID string                `json:"instanceId,omitempty"`
	Preset     *model.AmbiencePreset `json:"preset,omitempty"`
}

// Apply runs the intent on the loop goroutine.
func (m *Mixer) Apply(in Intent) (Result, error) {
	var res Result
	err := m.Do(func(s *playback.Store) error {
		var err error
		res, err = apply(s, in)
		return err
	})
	return res, err
}

func apply(s *playback.Store, in Intent) (Result, error) {
	var res Result
	switch in.Action {
	case ActionSetContext:
		if in.Context == "" {
			return res, fmt.Errorf("%w: context", ErrMissingField)
		}
		s.SetContext(in.Context)

	case ActionSetMasterVolume:
		if in.Volume == nil {
			return res, fmt.Errorf("%w: volume", ErrMissingField)
		}
		s.SetMasterVolume(*in.Volume)

	case ActionPlayMusic:
		track, err := lookup(s, in.TrackID, model.TrackMusic)
		if err != nil {
			return res, err
		}
		var playlist []model.Track
		if len(in.TrackIDs) > 0 {
			playlist = resolve(s, in.TrackIDs)
		} else {
			st := s.State()
			playlist = catalog.PlaylistFor(s.Catalog(), track, st.Context, st.Orders)
		}
		s.PlayMusic(track, playlist)

	case ActionResumeMusic:
		return res, s.ResumeMusic()

	case ActionPauseMusic:
		s.PauseMusic()

	case ActionStopMusic:
		s.StopMusic()

	case ActionSetPlaybackMode:
		mode, err := playback.ParseMode(in.Mode)
		if err != nil {
			return res, err
		}
		return res, s.SetPlaybackMode(mode)

	case ActionRequestSeek:
		s.RequestSeek(in.Seconds)

	case ActionPlayAmbience:
		track, err := lookup(s, in.TrackID, model.TrackAmbience)
		if err != nil {
			return res, err
		}
		volume := DefaultAmbienceVolume
		if in.Volume != nil {
			volume = *in.Volume
		}
		res.InstanceID = s.PlayAmbience(track, volume)

	case ActionStopAmbience:
		return res, s.StopAmbience(in.InstanceID)

	case ActionSetAmbienceVolume:
		if in.Volume == nil {
			return res, fmt.Errorf("%w: volume", ErrMissingField)
		}
		return res, s.SetAmbienceVolume(in.InstanceID, *in.Volume)

	case ActionToggleAmbienceMute:
		return res, s.ToggleAmbienceMute(in.InstanceID)

	case ActionReorderAmbience:
		s.ReorderAmbience(in.InstanceIDs)

	case ActionToggleSFX:
		track, err := lookup(s, in.TrackID, model.TrackSFX)
		if err != nil {
			return res, err
		}
		s.ToggleSFX(track)

	case ActionLoadPreset:
		p, ok := s.Preset(in.PresetID)
		if !ok {
			return res, playback.ErrUnknownPreset
		}
		s.LoadPreset(p)

	case ActionSaveNewPreset:
		if in.Name == "" {
			return res, fmt.Errorf("%w: name", ErrMissingField)
		}
		p := s.SaveNewPreset(in.Name)
		res.Preset = &p

	case ActionUpdateCurrentPreset:
		p, err := s.UpdateCurrentPreset()
		if err != nil {
			return res, err
		}
		res.Preset = &p

	case ActionDeletePreset:
		return res, s.DeletePreset(in.PresetID)

	case ActionReorderPlaylist:
		if in.Key == "" {
			return res, fmt.Errorf("%w: key", ErrMissingField)
		}
		s.ReorderPlaylist(in.Key, resolve(s, in.TrackIDs))

	case ActionPanic:
		s.PanicStop()

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
	return res, nil
}

func lookup(s *playback.Store, id string, typ model.TrackType) (model.Track, error) {
	if id == "" {
		return model.Track{}, fmt.Errorf("%w: trackId", ErrMissingField)
	}
	t, ok := s.Lookup(id)
	if !ok {
		return model.Track{}, fmt.Errorf("%w: %q", ErrUnknownTrack, id)
	}
	if t.Type != typ {
		return model.Track{}, fmt.Errorf("%w: %s is %s, want %s", ErrWrongType, t.ID, t.Type, typ)
	}
	return t, nil
}

// resolve maps ids to catalog tracks, dropping unknown ids.
func resolve(s *playback.Store, ids []string) []model.Track {
	out := make([]model.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.Lookup(id); ok {
			out = append(out, t)
		}
	}
	return out
}
