package matcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	ptn "github.com/middelink/go-parse-torrent-name"
)

var (
	videoExtRe = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|wmv|m4v|m4a|flac|ts)$`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize reduces a release or library name to a canonical comparison
// key: lowercased parsed title plus an exact season/episode or year
// marker. Two names match only when their keys are byte-equal; there is
// no similarity scoring. Names that carry different episode markers can
// therefore never collide.
func Normalize(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = videoExtRe.ReplaceAllString(base, "")

	info, err := ptn.Parse(base)
	if err != nil || info.Title == "" {
		return collapse(base)
	}

	key := collapse(info.Title)
	switch {
	case info.Season > 0 || info.Episode > 0:
		key = fmt.Sprintf("%s s%02de%02d", key, info.Season, info.Episode)
	case info.Year > 0:
		key = fmt.Sprintf("%s %d", key, info.Year)
	}
	return key
}

func collapse(s string) string {
	s = nonAlnumRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}
