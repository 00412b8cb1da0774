package db

import (
	_ "embed"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrCatalogLoad means the catalog storage is unreadable or corrupt. It is
// fatal to the invoking command and never silently treated as an empty
// catalog.
var ErrCatalogLoad = errors.New("catalog storage unreadable")

// DB represents our sqlite3 database file: the song catalog and the lyrics
// cache. The vector index lives in its own file (see vecstore).
type DB struct{ *gorm.DB }

//go:embed schema.sql
var schema string

// Open returns a connection to a migrated sqlite3 database file on disk,
// creating the file and running migrations if necessary.
func Open(filename string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(filename), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: error opening '%s': %v", ErrCatalogLoad, filename, err)
	}

	db := &DB{gdb}

	if err := db.Exec(schema).Error; err != nil {
		return nil, fmt.Errorf("%w: error migrating '%s': %v", ErrCatalogLoad, filename, err)
	}

	return db, nil
}

func (db *DB) Close() error {
	pool, err := db.DB.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}
