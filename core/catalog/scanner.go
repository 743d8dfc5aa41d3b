package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"RPGMixer/core/audio"
	"RPGMixer/logger"
	"RPGMixer/model"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// trackNamespace seeds ids derived from asset paths, so a rescan yields the
// same ids for the same files.
var trackNamespace = uuid.MustParse("6f1c3f2e-6a53-4d1b-9a55-6c8a2b3f9e10")

// TrackID derives the stable id of an asset from its slash-separated path
// relative to the assets root.
func TrackID(relPath string) string {
	return uuid.NewSHA1(trackNamespace, []byte(relPath)).String()
}

// Scanner infers tracks from an asset tree laid out as
// {music|ambience|sfx}/[category/[subcategory/]]file.ext.
type Scanner struct {
	Root string
}

// Scan walks the tree. Unsupported files are skipped; a missing type
// directory is not an error.
func (s Scanner) Scan() ([]model.Track, error) {
	var tracks []model.Track
	for _, typ := range []model.TrackType{model.TrackMusic, model.TrackAmbience, model.TrackSFX} {
		dir := filepath.Join(s.Root, string(typ))
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !audio.Supported(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(s.Root, p)
			if err != nil {
				return err
			}
			tracks = append(tracks, trackFromPath(typ, filepath.ToSlash(rel)))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].URL < tracks[j].URL })
	logger.Info("asset scan complete", logger.String("root", s.Root), logger.Int("tracks", len(tracks)))
	return tracks, nil
}

// FromPaths infers tracks from slash paths such as bucket keys. The first
// segment selects the type; paths outside the three type roots are ignored.
func FromPaths(paths []string) []model.Track {
	var tracks []model.Track
	for _, p := range paths {
		if !audio.Supported(p) {
			continue
		}
		root, _, ok := strings.Cut(p, "/")
		if !ok {
			continue
		}
		typ, err := model.ParseTrackType(root)
		if err != nil || string(typ) != root {
			continue
		}
		tracks = append(tracks, trackFromPath(typ, p))
	}
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].URL < tracks[j].URL })
	return tracks
}

// trackFromPath builds a global track from a path like "music/Acción/Combate/war_drums.mp3".
func trackFromPath(typ model.TrackType, rel string) model.Track {
	parts := strings.Split(rel, "/")
	dirs := parts[1 : len(parts)-1] // below the type directory

	category, subcategory := General, General
	switch {
	case len(dirs) >= 2:
		category, subcategory = dirs[0], dirs[1]
	case len(dirs) == 1:
		category = dirs[0]
	}

	t := model.Track{
		ID:       TrackID(rel),
		Name:     DisplayName(path.Base(rel)),
		URL:      rel,
		Type:     typ,
		Category: category,
	}
	if typ == model.TrackMusic {
		t.Subcategory = subcategory
	}
	return t
}

// DisplayName turns "war_drums.mp3" into "War Drums".
func DisplayName(file string) string {
	stem := strings.TrimSuffix(file, path.Ext(file))
	return cases.Title(language.Und).String(strings.ReplaceAll(stem, "_", " "))
}
