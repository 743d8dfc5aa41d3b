package audio

import (
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// extension returns the lowercase file extension of a locator, ignoring any query string.
func extension(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		locator = u.Path
	}
	return strings.ToLower(path.Ext(locator))
}

// Supported reports whether a locator has a decodable extension.
func Supported(locator string) bool {
	switch extension(locator) {
	case ".mp3", ".wav", ".ogg", ".oga", ".flac":
		return true
	}
	return false
}

func decode(locator string, rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch extension(locator) {
	case ".mp3":
		return mp3.Decode(rc)
	case ".wav":
		return wav.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	}
	return nil, beep.Format{}, ErrUnsupportedFormat
}
