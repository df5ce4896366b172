// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package thumbcache keeps rendered thumbnails in a sqlite database keyed
// by source URI, invalidated by the source modification time.
package thumbcache

import (
	"bytes"
	"database/sql"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite"
)

var logger = log.NewLogger("daemon/appearance/thumbcache")

func SetLogger(value *log.Logger) {
	logger = value
}

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS thumbnails (
    uri TEXT PRIMARY KEY,
    mtime INTEGER NOT NULL,
    width INTEGER NOT NULL,   -- size of the source image
    height INTEGER NOT NULL,
    png BLOB NOT NULL
);
`

// Cache is safe for concurrent use.
type Cache struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates the database at path if needed. ":memory:" keeps everything
// in memory.
func Open(path string) (*Cache, error) {
	dsn := path
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, xerrors.Errorf("create cache dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, xerrors.Errorf("open thumbnail cache: %w", err)
	}
	// one connection, so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("connect thumbnail cache: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return xerrors.Errorf("create schema: %w", err)
	}
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return xerrors.Errorf("read schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}
	if version != 0 {
		logger.Infof("thumbnail cache schema %d is stale, dropping entries", version)
		if _, err := db.Exec("DELETE FROM thumbnails"); err != nil {
			return xerrors.Errorf("clear thumbnails: %w", err)
		}
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return xerrors.Errorf("write schema version: %w", err)
	}
	_, err = db.Exec("INSERT INTO schema_version(version) VALUES (?)", schemaVersion)
	if err != nil {
		return xerrors.Errorf("write schema version: %w", err)
	}
	return nil
}

// Lookup returns the thumbnail stored for uri when it was made from the
// source as of mtime. width and height are the source image size.
func (c *Cache) Lookup(uri string, mtime int64) (thumb image.Image, width, height int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var storedMtime int64
	var data []byte
	err := c.db.QueryRow("SELECT mtime, width, height, png FROM thumbnails WHERE uri = ?", uri).
		Scan(&storedMtime, &width, &height, &data)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Warning("thumbnail lookup failed:", err)
		}
		return nil, 0, 0, false
	}
	if storedMtime != mtime {
		return nil, 0, 0, false
	}
	thumb, err = png.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debugf("drop corrupt thumbnail of %s: %v", uri, err)
		c.deleteLocked(uri)
		return nil, 0, 0, false
	}
	return thumb, width, height, true
}

// Save replaces the entry of uri.
func (c *Cache) Save(uri string, mtime int64, width, height int, thumb image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return xerrors.Errorf("encode thumbnail: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`INSERT INTO thumbnails(uri, mtime, width, height, png) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(uri) DO UPDATE SET mtime = excluded.mtime, width = excluded.width,
    height = excluded.height, png = excluded.png`,
		uri, mtime, width, height, buf.Bytes())
	if err != nil {
		return xerrors.Errorf("save thumbnail of %s: %w", uri, err)
	}
	return nil
}

// Delete forgets uri. Deleting an unknown uri is not an error.
func (c *Cache) Delete(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(uri)
}

func (c *Cache) deleteLocked(uri string) error {
	_, err := c.db.Exec("DELETE FROM thumbnails WHERE uri = ?", uri)
	if err != nil {
		return xerrors.Errorf("delete thumbnail of %s: %w", uri, err)
	}
	return nil
}

// Len is the number of stored thumbnails.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM thumbnails").Scan(&n)
	return n, err
}

func (c *Cache) Close() error {
	return c.db.Close()
}
