package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PresetTrack is one persisted (trackId, volume) pair.
type PresetTrack struct {
	TrackID string `json:"trackId"`
	Volume  int    `json:"volume"`
}

// PresetTrackList 自定义类型用于 GORM JSON 字段的自动扫描
type PresetTrackList []PresetTrack

// Scan 实现 sql.Scanner 接口
func (l *PresetTrackList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*l = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*l = nil
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Value 实现 driver.Valuer 接口
func (l PresetTrackList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// AmbiencePreset is a named, persisted ambience layer configuration.
// Mute state and layer instance ids are deliberately absent.
type AmbiencePreset struct {
	ID        string          `json:"id" gorm:"primaryKey;size:64"`
	Name      string          `json:"name" gorm:"size:100;not null"`
	Context   string          `json:"context" gorm:"size:100;index"`
	Tracks    PresetTrackList `json:"tracks" gorm:"type:json"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// TableName 指定表名
func (AmbiencePreset) TableName() string {
	return "ambience_presets"
}

// Clone returns a copy that does not share the track slice.
func (p AmbiencePreset) Clone() AmbiencePreset {
	out := p
	if p.Tracks != nil {
		out.Tracks = append(PresetTrackList(nil), p.Tracks...)
	}
	return out
}
