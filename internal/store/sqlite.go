package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS forecast_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists cache entries in a SQLite file so a restart keeps the
// last good payloads. Values are zstd-compressed.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
	logger     *zap.Logger
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, maxEntries int, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrUnavailable, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: failed to set pragma: %v", ErrUnavailable, err)
		}
	}

	return newSQLiteStore(db, maxEntries, logger)
}

// OpenSQLiteMemory opens a private in-memory database.
func OpenSQLiteMemory(maxEntries int, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSQLiteStore(db, maxEntries, logger)
}

func newSQLiteStore(db *sql.DB, maxEntries int, logger *zap.Logger) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", ErrUnavailable, err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		maxEntries: maxEntries,
		logger:     logger,
		encoder:    encoder,
		decoder:    decoder,
	}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT value FROM forecast_cache WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", ErrUnavailable, key, err)
	}

	value, err := s.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing %q: %v", ErrUnavailable, key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	if s.maxEntries > 0 {
		var exists, count int
		err := s.db.QueryRow(`SELECT
			(SELECT COUNT(*) FROM forecast_cache WHERE key = ?),
			(SELECT COUNT(*) FROM forecast_cache)`, key).Scan(&exists, &count)
		if err != nil {
			return fmt.Errorf("%w: counting entries: %v", ErrUnavailable, err)
		}
		if exists == 0 && count >= s.maxEntries {
			return ErrQuotaExceeded
		}
	}

	blob := s.encoder.EncodeAll(value, nil)
	_, err := s.db.Exec(`INSERT INTO forecast_cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: writing %q: %v", ErrUnavailable, key, err)
	}

	s.logger.Debug("Cache entry persisted",
		zap.String("key", key),
		zap.Int("raw_size", len(value)),
		zap.Int("stored_size", len(blob)))
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM forecast_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: deleting %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM forecast_cache ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing keys: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scanning key: %v", ErrUnavailable, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing keys: %v", ErrUnavailable, err)
	}
	return keys, nil
}

func (s *SQLiteStore) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		s.logger.Warn("Closing zstd encoder failed", zap.Error(err))
	}
	return s.db.Close()
}
