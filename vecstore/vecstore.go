// Package vecstore persists document embeddings in a sqlite3 file and
// answers cosine-similarity queries over them. Search is a brute-force scan,
// which is the right trade for a personal library of at most tens of
// thousands of songs; swapping in an ANN index would change nothing about
// the interface.
package vecstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nwiltsie/recall/data"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrIndexLoad means the index storage is unreadable or corrupt.
var ErrIndexLoad = errors.New("index storage unreadable")

//go:embed schema.sql
var schema string

type Store struct{ *gorm.DB }

// Open returns a connection to a migrated index file on disk, creating it
// if necessary.
func Open(filename string) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(filename), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: error opening '%s': %v", ErrIndexLoad, filename, err)
	}

	store := &Store{gdb}

	if err := store.Exec(schema).Error; err != nil {
		return nil, fmt.Errorf("%w: error migrating '%s': %v", ErrIndexLoad, filename, err)
	}

	return store, nil
}

func (s *Store) Close() error {
	pool, err := s.DB.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

type document struct {
	Fingerprint string `gorm:"primaryKey"`
	Vector      []byte
	Document    string
	IndexedAt   time.Time
}

// IndexMeta records which embedding model built the index. A query embedded
// by a different model must be refused, not scored.
type IndexMeta struct {
	ID         int `gorm:"primaryKey"`
	Model      string
	Dimensions int
	BuiltAt    time.Time
}

func (IndexMeta) TableName() string { return "index_meta" }

// Upsert inserts or replaces the vector for a fingerprint. Re-indexing a
// song after a lyrics update replaces its entry; the index never holds two
// records for one work.
func (s *Store) Upsert(ctx context.Context, fingerprint string, vec data.Vector, text string) error {
	if fingerprint == "" {
		return fmt.Errorf("no fingerprint")
	}
	bs, err := vec.Marshal()
	if err != nil {
		return fmt.Errorf("error encoding vector for '%s': %w", fingerprint, err)
	}
	if err := s.
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&document{
			Fingerprint: fingerprint,
			Vector:      bs,
			Document:    text,
			IndexedAt:   time.Now().UTC(),
		}).
		Error; err != nil {
		return fmt.Errorf("error upserting '%s': %w", fingerprint, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	if err := s.
		Where("fingerprint = ?", fingerprint).
		Delete(&document{}).
		Error; err != nil {
		return fmt.Errorf("error deleting '%s': %w", fingerprint, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.
		Model(&document{}).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting documents: %w", err)
	}
	return int(count), nil
}

// Match is one query result: a fingerprint, its cosine similarity to the
// query, and the indexed document text for previews.
type Match struct {
	Fingerprint string
	Score       float64
	Document    string
}

// Query scans every stored vector and returns the topK most similar,
// ordered by descending score. Documents whose score equals the last
// returned score are all included, even past topK, so callers holding more
// context (like catalog order) can break the tie themselves.
func (s *Store) Query(ctx context.Context, vec data.Vector, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var docs []document
	if err := s.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("%w: error scanning documents: %v", ErrIndexLoad, err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}
		stored, err := data.UnmarshalVector(doc.Vector)
		if err != nil {
			return nil, fmt.Errorf("error decoding vector for '%s': %w", doc.Fingerprint, err)
		}
		matches = append(matches, Match{
			Fingerprint: doc.Fingerprint,
			Score:       vec.Cosine(stored),
			Document:    doc.Document,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	cut := topK
	for cut < len(matches) && matches[cut].Score == matches[cut-1].Score {
		cut++
	}
	if len(matches) > cut {
		matches = matches[:cut]
	}
	return matches, nil
}

// Meta returns the recorded index metadata, or nil when nothing has been
// indexed yet.
func (s *Store) Meta(ctx context.Context) (*IndexMeta, error) {
	var meta IndexMeta
	err := s.First(&meta, "id = 1").Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading index meta: %w", err)
	}
	return &meta, nil
}

func (s *Store) SetMeta(ctx context.Context, model string, dimensions int) error {
	if err := s.
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&IndexMeta{
			ID:         1,
			Model:      model,
			Dimensions: dimensions,
			BuiltAt:    time.Now().UTC(),
		}).
		Error; err != nil {
		return fmt.Errorf("error writing index meta: %w", err)
	}
	return nil
}

// Reset drops every document and the meta record, for a from-scratch
// rebuild with a different model.
func (s *Store) Reset(ctx context.Context) error {
	return s.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&document{}).Error; err != nil {
			return fmt.Errorf("error clearing documents: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&IndexMeta{}).Error; err != nil {
			return fmt.Errorf("error clearing index meta: %w", err)
		}
		return nil
	})
}
