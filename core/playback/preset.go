package playback

import "RPGMixer/model"

// EncodePreset snapshots layers as (trackId, volume) pairs. Mute state and
// instance ids are not part of a preset.
func EncodePreset(id, name, context string, layers []Layer) model.AmbiencePreset {
	return model.AmbiencePreset{
		ID:      id,
		Name:    name,
		Context: context,
		Tracks:  encodeTracks(layers),
	}
}

// RefreshPreset overwrites a preset's pairs and context, keeping id and name.
func RefreshPreset(p model.AmbiencePreset, context string, layers []Layer) model.AmbiencePreset {
	p.Context = context
	p.Tracks = encodeTracks(layers)
	return p
}

func encodeTracks(layers []Layer) model.PresetTrackList {
	pairs := make(model.PresetTrackList, 0, len(layers))
	for _, l := range layers {
		pairs = append(pairs, model.PresetTrack{TrackID: l.Track.ID, Volume: l.Volume})
	}
	return pairs
}

// DecodePreset rebuilds layers from a preset. Pairs whose track is not in the
// catalog are skipped; every layer starts unmuted with a fresh instance id.
func DecodePreset(p model.AmbiencePreset, lookup func(id string) (model.Track, bool), newID func() string) (layers []Layer, skipped []string) {
	for _, pt := range p.Tracks {
		t, ok := lookup(pt.TrackID)
		if !ok {
			skipped = append(skipped, pt.TrackID)
			continue
		}
		layers = append(layers, Layer{
			InstanceID: newID(),
			Track:      t,
			Volume:     clampVolume(pt.Volume),
		})
	}
	return layers, skipped
}
