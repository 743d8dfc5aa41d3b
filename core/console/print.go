package console

import (
	"fmt"
	"strings"

	"RPGMixer/core/catalog"
	"RPGMixer/core/playback"
)

func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func cmdState(c *Console, _ []string) error {
	st, err := c.mixer.State()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "context %s  master %d\n", st.Context, st.MasterVolume)

	if st.Music == nil {
		fmt.Fprintln(c.out, "music   -")
	} else {
		status := "paused"
		if st.IsPlaying {
			status = "playing"
		}
		fmt.Fprintf(c.out, "music   %s [%s] %s/%s %s\n",
			st.Music.Name, status, clock(st.CurrentTime), clock(st.Duration), st.Mode)
	}

	fmt.Fprintln(c.out, "ambience")
	for i, l := range st.Ambience {
		muted := ""
		if l.Muted {
			muted = " (muted)"
		}
		fmt.Fprintf(c.out, "  [%d] %s %d%s\n", i+1, l.Track.Name, l.Volume, muted)
	}

	if len(st.ActiveSFX) > 0 {
		fmt.Fprintf(c.out, "sfx     %s\n", strings.Join(st.ActiveSFX, ", "))
	}

	for _, p := range st.Presets {
		mark := " "
		if p.ID == st.ActivePresetID {
			mark = "*"
		}
		fmt.Fprintf(c.out, "preset %s %s (%d)\n", mark, p.Name, len(p.Tracks))
	}
	return nil
}

// cmdList prints the catalog as grouped for the current context.
func cmdList(c *Console, _ []string) error {
	return c.mixer.Do(func(s *playback.Store) error {
		st := s.State()
		tracks := s.Catalog()
		for _, g := range catalog.MusicGroups(tracks, st.Context, st.Orders) {
			fmt.Fprintf(c.out, "%s / %s\n", g.Category, g.Subcategory)
			for _, t := range g.Tracks {
				fmt.Fprintf(c.out, "  ♪ %s\n", t.Name)
			}
		}
		if amb := catalog.Ambience(tracks, st.Context); len(amb) > 0 {
			fmt.Fprintln(c.out, "Ambience")
			for _, t := range amb {
				fmt.Fprintf(c.out, "  ~ %s\n", t.Name)
			}
		}
		for _, g := range catalog.SFXGroups(tracks, st.Context, st.Orders) {
			fmt.Fprintf(c.out, "SFX %s\n", g.Category)
			for _, t := range g.Tracks {
				fmt.Fprintf(c.out, "  • %s\n", t.Name)
			}
		}
		return nil
	})
}

// Follow prints the music track whenever the sequencer moves to another one.
func (c *Console) Follow() error {
	last := ""
	return c.mixer.Watch(func(ch playback.Change, st playback.State) {
		if ch&playback.ChangeMusic == 0 {
			return
		}
		id := ""
		if st.Music != nil {
			id = st.Music.ID
		}
		if id != last && id != "" {
			fmt.Fprintf(c.out, "♪ now playing %s\n", st.Music.Name)
		}
		last = id
	})
}
