package model

import "strings"

// PlaylistOrders maps an order key to an explicit ordered track-id list.
type PlaylistOrders map[string][]string

// MusicOrderKey builds the key for a music subcategory list: context.category.subcategory.
func MusicOrderKey(context, category, subcategory string) string {
	return strings.Join([]string{context, category, subcategory}, ".")
}

// SFXOrderKey builds the key for an SFX category grid: context.category.
func SFXOrderKey(context, category string) string {
	return context + "." + category
}

// Clone deep-copies the map so callers can hand it across goroutines.
func (o PlaylistOrders) Clone() PlaylistOrders {
	out := make(PlaylistOrders, len(o))
	for k, ids := range o {
		out[k] = append([]string(nil), ids...)
	}
	return out
}
