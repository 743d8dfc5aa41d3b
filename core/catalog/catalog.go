package catalog

import (
	"sort"

	"RPGMixer/core/playback"
	"RPGMixer/model"
)

// General is the category and subcategory used when none is given.
const General = "General"

// Visible keeps the tracks listed under context, in input order.
func Visible(tracks []model.Track, context string) []model.Track {
	var out []model.Track
	for _, t := range tracks {
		if t.VisibleIn(context) {
			out = append(out, t)
		}
	}
	return out
}

// OfType keeps tracks of one type.
func OfType(tracks []model.Track, typ model.TrackType) []model.Track {
	var out []model.Track
	for _, t := range tracks {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// Ambience lists the ambience tracks visible under context.
func Ambience(tracks []model.Track, context string) []model.Track {
	return OfType(Visible(tracks, context), model.TrackAmbience)
}

// MusicGroup is one subcategory list of music.
type MusicGroup struct {
	Category    string        `json:"category"`
	Subcategory string        `json:"subcategory"`
	OrderKey    string        `json:"orderKey"`
	Tracks      []model.Track `json:"tracks"`
}

// SFXGroup is one category grid of effects.
type SFXGroup struct {
	Category string        `json:"category"`
	OrderKey string        `json:"orderKey"`
	Tracks   []model.Track `json:"tracks"`
}

func orDefault(s string) string {
	if s == "" {
		return General
	}
	return s
}

// MusicGroups buckets visible music by category and subcategory. Buckets
// follow model.MusicCategories; unknown categories follow in name order.
// Each bucket is sorted by its saved order, if any.
func MusicGroups(tracks []model.Track, context string, orders model.PlaylistOrders) []MusicGroup {
	type key struct{ cat, sub string }
	buckets := map[key][]model.Track{}
	for _, t := range OfType(Visible(tracks, context), model.TrackMusic) {
		k := key{orDefault(t.Category), orDefault(t.Subcategory)}
		buckets[k] = append(buckets[k], t)
	}

	var keys []key
	seen := map[key]bool{}
	for _, c := range model.MusicCategories {
		for _, sub := range c.Subcategories {
			k := key{c.Name, sub}
			if _, ok := buckets[k]; ok {
				keys = append(keys, k)
				seen[k] = true
			}
		}
	}
	var extra []key
	for k := range buckets {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		if extra[i].cat != extra[j].cat {
			return extra[i].cat < extra[j].cat
		}
		return extra[i].sub < extra[j].sub
	})
	keys = append(keys, extra...)

	groups := make([]MusicGroup, 0, len(keys))
	for _, k := range keys {
		orderKey := model.MusicOrderKey(context, k.cat, k.sub)
		groups = append(groups, MusicGroup{
			Category:    k.cat,
			Subcategory: k.sub,
			OrderKey:    orderKey,
			Tracks:      playback.ApplyOrder(buckets[k], orders[orderKey]),
		})
	}
	return groups
}

// SFXGroups buckets visible effects by category, following model.SFXCategories.
func SFXGroups(tracks []model.Track, context string, orders model.PlaylistOrders) []SFXGroup {
	buckets := map[string][]model.Track{}
	for _, t := range OfType(Visible(tracks, context), model.TrackSFX) {
		c := orDefault(t.Category)
		buckets[c] = append(buckets[c], t)
	}

	var cats []string
	seen := map[string]bool{}
	for _, c := range model.SFXCategories {
		if _, ok := buckets[c]; ok {
			cats = append(cats, c)
			seen[c] = true
		}
	}
	var extra []string
	for c := range buckets {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	cats = append(cats, extra...)

	groups := make([]SFXGroup, 0, len(cats))
	for _, c := range cats {
		orderKey := model.SFXOrderKey(context, c)
		groups = append(groups, SFXGroup{
			Category: c,
			OrderKey: orderKey,
			Tracks:   playback.ApplyOrder(buckets[c], orders[orderKey]),
		})
	}
	return groups
}

// PlaylistFor returns the ordered music group containing track, which is
// the sequencing context when that track is started from the catalog.
func PlaylistFor(tracks []model.Track, track model.Track, context string, orders model.PlaylistOrders) []model.Track {
	for _, g := range MusicGroups(tracks, context, orders) {
		for _, t := range g.Tracks {
			if t.ID == track.ID {
				return g.Tracks
			}
		}
	}
	return []model.Track{track}
}

// Merge overlays extra onto base by id. Replaced entries keep their position;
// new ones are appended.
func Merge(base, extra []model.Track) []model.Track {
	out := append([]model.Track(nil), base...)
	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.ID] = i
	}
	for _, t := range extra {
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}
