package playback

import (
	"errors"
	"fmt"
	"strings"

	"RPGMixer/model"
)

var (
	ErrUnknownLayer    = errors.New("unknown ambience layer")
	ErrNoActivePreset  = errors.New("no active preset")
	ErrInvalidMode     = errors.New("invalid playback mode")
	ErrUnknownPreset   = errors.New("unknown preset")
	ErrNothingToResume = errors.New("no music track to resume")
)

// Mode selects how the music channel advances when a track ends.
type Mode string

const (
	ModeLoop       Mode = "loop"
	ModeSequential Mode = "sequential"
	ModeShuffle    Mode = "shuffle"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLoop, ModeSequential, ModeShuffle:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Layer is one active ambience instance. The same track may back several
// layers; InstanceID tells them apart.
type Layer struct {
	InstanceID string      `json:"instanceId"`
	Track      model.Track `json:"track"`
	Volume     int         `json:"volume"`
	Muted      bool        `json:"muted"`
}

// SFXRequest asks for one fresh playback of a transient sound.
type SFXRequest struct {
	Track     model.Track `json:"track"`
	TriggerID uint64      `json:"triggerId"`
}

// maxSFXRequests bounds the request backlog kept in state; the engine only
// ever needs the requests newer than the last one it handled.
const maxSFXRequests = 32

// State is the desired state of the mixer.
type State struct {
	Context      string `json:"context"`
	MasterVolume int    `json:"masterVolume"`

	Music       *model.Track  `json:"activeMusicTrack"`
	IsPlaying   bool          `json:"isPlaying"`
	Mode        Mode          `json:"playbackMode"`
	Playlist    []model.Track `json:"currentPlaylist"`
	CurrentTime float64       `json:"currentTime"`
	Duration    float64       `json:"duration"`
	// Seek is a one-shot position request in seconds, cleared once applied.
	Seek *float64 `json:"seekRequest,omitempty"`

	Ambience []Layer `json:"activeAmbience"`

	ActiveSFX   []string     `json:"activeSfxIds"`
	SFXRequests []SFXRequest `json:"-"`

	Presets        []model.AmbiencePreset `json:"presets"`
	ActivePresetID string                 `json:"activePresetId,omitempty"`
	Orders         model.PlaylistOrders   `json:"playlistOrders"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	if s.Music != nil {
		m := *s.Music
		out.Music = &m
	}
	if s.Seek != nil {
		v := *s.Seek
		out.Seek = &v
	}
	out.Playlist = append([]model.Track(nil), s.Playlist...)
	out.Ambience = append([]Layer(nil), s.Ambience...)
	out.ActiveSFX = append([]string(nil), s.ActiveSFX...)
	out.SFXRequests = append([]SFXRequest(nil), s.SFXRequests...)
	out.Presets = make([]model.AmbiencePreset, len(s.Presets))
	for i, p := range s.Presets {
		out.Presets[i] = p.Clone()
	}
	out.Orders = s.Orders.Clone()
	return out
}

// SFXActive reports whether a track carries the active marker.
func (s State) SFXActive(trackID string) bool {
	for _, id := range s.ActiveSFX {
		if id == trackID {
			return true
		}
	}
	return false
}

// Layer finds an ambience layer by instance id.
func (s State) Layer(instanceID string) (Layer, bool) {
	for _, l := range s.Ambience {
		if l.InstanceID == instanceID {
			return l, true
		}
	}
	return Layer{}, false
}

// Change is a bitmask describing which parts of State an intent touched.
type Change uint32

const (
	ChangeContext Change = 1 << iota
	ChangeMaster
	ChangeMusic
	ChangeMode
	ChangeSeek
	ChangeProgress
	ChangeAmbience
	ChangeSFX
	ChangePresets
	ChangeOrders
	ChangeCatalog
	// ChangeSilence asks for every sound, including in-flight effects, to stop.
	ChangeSilence
)

// ChangeAudible is the set of changes the mixer output depends on.
const ChangeAudible = ChangeMaster | ChangeMusic | ChangeMode | ChangeSeek | ChangeAmbience | ChangeSFX | ChangeSilence

// Has reports whether any bit of o is set in c.
func (c Change) Has(o Change) bool { return c&o != 0 }

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
