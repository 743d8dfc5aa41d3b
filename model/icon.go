package model

import (
	"fmt"
	"strings"
)

// Icon is the closed set of glyphs a track can be drawn with.
type Icon int

const (
	IconDefault Icon = iota
	IconMusic
	IconRain
	IconWind
	IconFire
	IconForest
	IconWater
	IconTavern
	IconSword
	IconMagic
	IconSkull
	IconBell
	IconZap
)

var iconNames = [...]string{
	IconDefault: "default",
	IconMusic:   "music",
	IconRain:    "rain",
	IconWind:    "wind",
	IconFire:    "fire",
	IconForest:  "forest",
	IconWater:   "water",
	IconTavern:  "tavern",
	IconSword:   "sword",
	IconMagic:   "magic",
	IconSkull:   "skull",
	IconBell:    "bell",
	IconZap:     "zap",
}

var iconByName = func() map[string]Icon {
	m := make(map[string]Icon, len(iconNames))
	for i, name := range iconNames {
		m[name] = Icon(i)
	}
	// aliases used by older catalogs
	m["cloud-rain"] = IconRain
	m["flame"] = IconFire
	m["trees"] = IconForest
	m["waves"] = IconWater
	m["beer"] = IconTavern
	m["swords"] = IconSword
	m["sparkles"] = IconMagic
	return m
}()

func (i Icon) String() string {
	if i < 0 || int(i) >= len(iconNames) {
		return iconNames[IconDefault]
	}
	return iconNames[i]
}

// MarshalText implements encoding.TextMarshaler.
func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; unknown names are an error.
func (i *Icon) UnmarshalText(b []byte) error {
	icon, ok := LookupIcon(string(b))
	if !ok {
		return fmt.Errorf("unknown icon %q", string(b))
	}
	*i = icon
	return nil
}

// LookupIcon resolves a name without fallback.
func LookupIcon(name string) (Icon, bool) {
	icon, ok := iconByName[strings.ToLower(strings.TrimSpace(name))]
	return icon, ok
}

// ResolveIcon resolves the icon of a track at load time. Unknown or empty
// names fall back to the glyph of the track type.
func ResolveIcon(t Track) Icon {
	if icon, ok := LookupIcon(t.Icon); ok && icon != IconDefault {
		return icon
	}
	switch t.Type {
	case TrackMusic:
		return IconMusic
	case TrackAmbience:
		return IconRain
	case TrackSFX:
		return IconZap
	default:
		return IconDefault
	}
}
