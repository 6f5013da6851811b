package store

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a durable Store backed by a pure-Go SQLite driver. It
// serializes writes with an explicit mutex, since modernc.org/sqlite
// serializes writers at the connection level and concurrent writers
// otherwise surface as "database is locked" errors.
type SQLiteStore struct {
	db    *sql.DB
	write sync.Mutex
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store at
// filename. Pass "" for an in-memory database.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		expires INTEGER,
		entry BLOB
	)`); err != nil {
		return nil, err
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(key string) (Entry, bool, error) {
	var expires int64
	var raw []byte
	err := s.db.QueryRow("SELECT expires, entry FROM cache WHERE key = ?", key).Scan(&expires, &raw)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if expires > 0 && time.Now().After(time.Unix(expires, 0)) {
		s.write.Lock()
		s.db.Exec("DELETE FROM cache WHERE key = ?", key)
		s.write.Unlock()
		return Entry{}, false, nil
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *SQLiteStore) Set(key string, entry Entry, ttl time.Duration) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).Unix()
	}
	s.write.Lock()
	defer s.write.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO cache (key, expires, entry) VALUES (?, ?, ?)",
		key, expires, raw,
	)
	return err
}

func (s *SQLiteStore) Remove(key string) error {
	s.write.Lock()
	defer s.write.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// Oldest implements OldestProvider.
func (s *SQLiteStore) Oldest() (string, time.Time, bool, error) {
	var key string
	var expires int64
	err := s.db.QueryRow(
		"SELECT key, expires FROM cache WHERE expires > 0 ORDER BY expires ASC LIMIT 1",
	).Scan(&key, &expires)
	if err == sql.ErrNoRows {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return key, time.Unix(expires, 0), true, nil
}

// Keys implements KeyLister.
func (s *SQLiteStore) Keys(cb func(string) bool) {
	rows, err := s.db.Query("SELECT key FROM cache")
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return
		}
		if !cb(key) {
			return
		}
	}
}
