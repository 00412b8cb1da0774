package data

import (
	"database/sql"
	"strings"
)

// Source identifies which music service a song record came from.
type Source string

const (
	SourceSpotify Source = "spotify"
	SourceLastFM  Source = "lastfm"
)

// Song is the normalized shape every source record is converted to. Title
// and Artist keep their original casing for display; matching always goes
// through Fingerprint.
type Song struct {
	Source Source
	Title  string
	Artist string
	Album  string

	// Opaque id from the origin API, like "4uLU6hMCjMI75M1A2tKUQC".
	SourceID string

	// Number of plays this record represents. Scrobble-derived songs
	// carry at least 1; saved-track records carry 0 (unknown).
	PlayCount int64

	AddedAt      sql.NullTime
	LastPlayedAt sql.NullTime
}

func (s Song) Fingerprint() string {
	return Fingerprint(s.Artist, s.Title)
}

// CatalogEntry is a deduplicated, source-merged song in the local catalog.
//
// Position is assigned on first insert and never changes; it is the
// tie-break order for equal search scores.
type CatalogEntry struct {
	Position    int64 `gorm:"primaryKey;autoIncrement"`
	Fingerprint string

	Title  string
	Artist string
	Album  string

	SourceID string

	// Sorted, comma-joined set of sources this song was seen from,
	// like "lastfm,spotify".
	Sources string

	PlayCount int64

	AddedAt      sql.NullTime
	LastPlayedAt sql.NullTime
}

func (e *CatalogEntry) SourceSet() []string {
	if e.Sources == "" {
		return nil
	}
	return strings.Split(e.Sources, ",")
}

func (e *CatalogEntry) HasSource(source Source) bool {
	for _, s := range e.SourceSet() {
		if s == string(source) {
			return true
		}
	}
	return false
}

// AddSource unions a source into the set, keeping it sorted.
func (e *CatalogEntry) AddSource(source Source) {
	if e.HasSource(source) {
		return
	}
	set := append(e.SourceSet(), string(source))
	for i := 1; i < len(set); i++ {
		for j := i; j > 0 && set[j] < set[j-1]; j-- {
			set[j], set[j-1] = set[j-1], set[j]
		}
	}
	e.Sources = strings.Join(set, ",")
}

// NewCatalogEntry builds the entry a song would insert if its fingerprint
// is not yet in the catalog.
func NewCatalogEntry(song Song) CatalogEntry {
	entry := CatalogEntry{
		Fingerprint:  song.Fingerprint(),
		Title:        song.Title,
		Artist:       song.Artist,
		Album:        song.Album,
		SourceID:     song.SourceID,
		PlayCount:    song.PlayCount,
		AddedAt:      song.AddedAt,
		LastPlayedAt: song.LastPlayedAt,
	}
	entry.AddSource(song.Source)
	return entry
}

// Merge folds another sighting of the same musical work into the entry:
// play counts sum, sources union, timestamps keep the most recent, and
// display fields keep their first-seen casing. Empty optional fields are
// filled in from the new sighting.
func (e *CatalogEntry) Merge(song Song) {
	e.PlayCount += song.PlayCount
	e.AddSource(song.Source)
	if e.Album == "" {
		e.Album = song.Album
	}
	if e.SourceID == "" {
		e.SourceID = song.SourceID
	}
	if song.AddedAt.Valid && (!e.AddedAt.Valid || song.AddedAt.Time.After(e.AddedAt.Time)) {
		e.AddedAt = song.AddedAt
	}
	if song.LastPlayedAt.Valid && (!e.LastPlayedAt.Valid || song.LastPlayedAt.Time.After(e.LastPlayedAt.Time)) {
		e.LastPlayedAt = song.LastPlayedAt
	}
}
