package data

import (
	"strings"
	"time"
)

// LyricsStatus records the outcome of a lyrics lookup.
//
// A not_found entry is terminal: the catalog won't re-ask the collaborator
// for it unless forced. An error entry is transient and is retried on the
// next enrichment run.
type LyricsStatus string

const (
	LyricsFound    LyricsStatus = "found"
	LyricsNotFound LyricsStatus = "not_found"
	LyricsError    LyricsStatus = "error"
)

// LyricsEntry is one cached lyrics lookup, keyed by song fingerprint.
type LyricsEntry struct {
	Fingerprint string `gorm:"primaryKey"`

	Status       LyricsStatus
	Lyrics       string
	Instrumental bool

	// Which provider the lookup went to, like "lrclib".
	SourceAttempted string

	FetchedAt time.Time
}

func (e *LyricsEntry) HasLyrics() bool {
	return e.Status == LyricsFound && strings.TrimSpace(e.Lyrics) != ""
}

// Snippet returns the first non-empty lyrics line, truncated to max runes.
// It is display-only; ranking never touches it.
func (e *LyricsEntry) Snippet(max int) string {
	for _, line := range strings.Split(e.Lyrics, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > max {
			return string(runes[:max]) + "…"
		}
		return line
	}
	return ""
}
