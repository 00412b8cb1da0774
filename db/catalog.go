package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/nwiltsie/recall/data"
	"gorm.io/gorm"
)

// SourceAll requests the full deduplicated catalog rather than one source's
// slice of it.
const SourceAll = "all"

type UpsertResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// UpsertSongs merges a batch of normalized songs into the catalog. Songs
// whose fingerprint is already present merge per data.CatalogEntry.Merge;
// new fingerprints insert. Songs that normalize to an empty artist or title
// are skipped, never inserted. The whole batch commits in one transaction,
// so a failure leaves the prior catalog visible to subsequent reads.
func (db *DB) UpsertSongs(ctx context.Context, songs []data.Song) (UpsertResult, error) {
	var result UpsertResult

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, song := range songs {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("canceled: %w", err)
			}

			if data.Normalize(song.Title) == "" || data.Normalize(song.Artist) == "" {
				result.Skipped++
				continue
			}
			fingerprint := song.Fingerprint()

			var existing data.CatalogEntry
			err := tx.
				Where("fingerprint = ?", fingerprint).
				First(&existing).
				Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				entry := data.NewCatalogEntry(song)
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("error inserting '%s': %w", fingerprint, err)
				}
				result.Inserted++
			case err != nil:
				return fmt.Errorf("error looking up '%s': %w", fingerprint, err)
			default:
				existing.Merge(song)
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("error merging '%s': %w", fingerprint, err)
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	return result, nil
}

// LoadCatalog returns catalog entries in insertion order. Pass SourceAll for
// the full deduplicated catalog, or a source name to filter by source
// membership.
func (db *DB) LoadCatalog(ctx context.Context, source string) ([]data.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var entries []data.CatalogEntry
	if err := db.
		Order("position asc").
		Find(&entries).
		Error; err != nil {
		return nil, fmt.Errorf("%w: error loading catalog: %v", ErrCatalogLoad, err)
	}

	if source == SourceAll || source == "" {
		return entries, nil
	}

	filtered := entries[:0]
	for _, entry := range entries {
		if entry.HasSource(data.Source(source)) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

func (db *DB) GetEntry(ctx context.Context, fingerprint string) (*data.CatalogEntry, error) {
	var entry data.CatalogEntry
	err := db.
		Where("fingerprint = ?", fingerprint).
		First(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting entry '%s': %w", fingerprint, err)
	}
	return &entry, nil
}

// GetEntries returns the catalog entries for the given fingerprints, keyed
// by fingerprint. Unknown fingerprints are simply absent from the map.
func (db *DB) GetEntries(ctx context.Context, fingerprints []string) (map[string]data.CatalogEntry, error) {
	if len(fingerprints) == 0 {
		return map[string]data.CatalogEntry{}, nil
	}
	var entries []data.CatalogEntry
	if err := db.
		Where("fingerprint in ?", fingerprints).
		Find(&entries).
		Error; err != nil {
		return nil, fmt.Errorf("error getting %d entries: %w", len(fingerprints), err)
	}
	byFingerprint := make(map[string]data.CatalogEntry, len(entries))
	for _, entry := range entries {
		byFingerprint[entry.Fingerprint] = entry
	}
	return byFingerprint, nil
}

// RemoveEntry deletes a song from the catalog and its lyrics cache entry.
// Removal is always an explicit user action; nothing in the pipelines calls
// this.
func (db *DB) RemoveEntry(ctx context.Context, fingerprint string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("fingerprint = ?", fingerprint).
			Delete(&data.CatalogEntry{}).
			Error; err != nil {
			return fmt.Errorf("error removing '%s' from catalog: %w", fingerprint, err)
		}
		if err := tx.
			Where("fingerprint = ?", fingerprint).
			Delete(&data.LyricsEntry{}).
			Error; err != nil {
			return fmt.Errorf("error removing '%s' from lyrics cache: %w", fingerprint, err)
		}
		return nil
	})
}

type CatalogStats struct {
	Total     int
	PerSource map[string]int
}

func (db *DB) Stats(ctx context.Context) (CatalogStats, error) {
	entries, err := db.LoadCatalog(ctx, SourceAll)
	if err != nil {
		return CatalogStats{}, err
	}
	stats := CatalogStats{
		Total:     len(entries),
		PerSource: map[string]int{},
	}
	for _, entry := range entries {
		for _, source := range entry.SourceSet() {
			stats.PerSource[source]++
		}
	}
	return stats, nil
}
