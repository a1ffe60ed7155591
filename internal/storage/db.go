// Package storage хранит историю переводов в sqlite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const fileName = "translations.db"

// ErrNotFound записи с таким id нет.
var ErrNotFound = errors.New("storage: translation not found")

type DB struct {
	conn *sql.DB
}

// Open открывает базу в dir и создаёт схему.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// один писатель: запись из обработчика жеста и из HTTP не должна ловить SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,

		source_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,

		-- gesture | override | manual | swap
		origin TEXT NOT NULL,
		provider TEXT NOT NULL,
		response_time_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_created_at ON translations(created_at);
	CREATE INDEX IF NOT EXISTS idx_translations_provider ON translations(provider);
	`

	_, err := db.conn.Exec(schema)
	return err
}
