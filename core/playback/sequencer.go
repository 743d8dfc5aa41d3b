package playback

import (
	"math/rand/v2"
	"sort"

	"RPGMixer/model"
)

// NextTrack picks the track that follows current in playlist under mode.
// It returns current unchanged for loop mode or an empty playlist.
func NextTrack(current *model.Track, playlist []model.Track, mode Mode, rng *rand.Rand) *model.Track {
	if len(playlist) == 0 {
		return current
	}
	if mode == ModeLoop && current != nil {
		return current
	}

	idx := indexOf(playlist, current)
	switch mode {
	case ModeShuffle:
		n := len(playlist)
		if n == 1 {
			return trackAt(playlist, 0)
		}
		pick := rng.IntN(n)
		if pick == idx {
			// resample among the others
			pick = rng.IntN(n - 1)
			if pick >= idx {
				pick++
			}
		}
		return trackAt(playlist, pick)
	default:
		if idx < 0 {
			return trackAt(playlist, 0)
		}
		return trackAt(playlist, (idx+1)%len(playlist))
	}
}

func indexOf(playlist []model.Track, t *model.Track) int {
	if t == nil {
		return -1
	}
	for i := range playlist {
		if playlist[i].ID == t.ID {
			return i
		}
	}
	return -1
}

func trackAt(playlist []model.Track, i int) *model.Track {
	t := playlist[i]
	return &t
}

// ApplyOrder sorts tracks by an explicit id order. Ids missing from order keep
// their relative input order and go after every listed id. Unknown ids in
// order are ignored.
func ApplyOrder(tracks []model.Track, order []string) []model.Track {
	out := append([]model.Track(nil), tracks...)
	if len(order) == 0 {
		return out
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	pos := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(order)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return pos(out[i].ID) < pos(out[j].ID)
	})
	return out
}

// TrackIDs lists the ids of tracks in order.
func TrackIDs(tracks []model.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
