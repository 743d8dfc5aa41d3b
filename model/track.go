package model

import (
	"fmt"
	"strings"
	"time"
)

// TrackType partitions the catalog into the three mixer sections.
type TrackType string

const (
	TrackMusic    TrackType = "music"
	TrackAmbience TrackType = "ambience"
	TrackSFX      TrackType = "sfx"
)

// ParseTrackType validates a type coming from the API or the asset tree.
func ParseTrackType(s string) (TrackType, error) {
	switch t := TrackType(strings.ToLower(strings.TrimSpace(s))); t {
	case TrackMusic, TrackAmbience, TrackSFX:
		return t, nil
	default:
		return "", fmt.Errorf("unknown track type %q", s)
	}
}

// Track is an immutable catalog entry. The audio resource behind URL is never
// owned by the mixer; URL is a locator resolved by an audio.Opener.
type Track struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	URL         string    `json:"url" gorm:"size:767;not null"`
	Type        TrackType `json:"type" gorm:"size:20;not null;index"`
	Context     string    `json:"context,omitempty" gorm:"size:100;index"` // empty means global
	Category    string    `json:"category,omitempty" gorm:"size:100"`
	Subcategory string    `json:"subcategory,omitempty" gorm:"size:100"`
	Icon        string    `json:"icon,omitempty" gorm:"size:50"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// IsGlobal reports whether the track carries no context tag.
func (t Track) IsGlobal() bool {
	return t.Context == ""
}

// VisibleIn reports whether the track is listed under the given context.
// Global tracks are visible everywhere.
func (t Track) VisibleIn(context string) bool {
	return t.IsGlobal() || t.Context == context
}
