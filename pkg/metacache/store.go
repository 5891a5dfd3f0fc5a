// Package metacache keeps the last successfully fetched site metadata per
// server in SQLite, so a client that starts while the server's metadata
// endpoint is unreachable can still project snapshots with the right catalog
// and display options.
package metacache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"presence/pkg/protocol"
)

// ErrNotFound is returned by Load when nothing is cached for a server.
var ErrNotFound = errors.New("no cached metadata")

// sqliteTime is the layout of datetime('now').
const sqliteTime = "2006-01-02 15:04:05"

// Store is a metadata cache backed by one SQLite file.
type Store struct {
	db     *sql.DB
	encode cbor.EncMode
	decode cbor.DecMode
}

// Open opens (creating if needed) the cache at path. ":memory:" is accepted
// for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}

	return &Store{db: db, encode: enc, decode: dec}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records meta as the latest metadata for baseURL.
func (s *Store) Save(ctx context.Context, baseURL string, meta protocol.Metadata) error {
	payload, err := s.encode.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO metadata_cache (base_url, payload, version, fetched_at)
VALUES (?, ?, ?, datetime('now'))
ON CONFLICT(base_url) DO UPDATE SET
    payload = excluded.payload,
    version = excluded.version,
    fetched_at = excluded.fetched_at`,
		baseURL, payload, meta.Version)
	if err != nil {
		return fmt.Errorf("save metadata for %s: %w", baseURL, err)
	}
	return nil
}

// Load returns the cached metadata for baseURL and when it was fetched.
func (s *Store) Load(ctx context.Context, baseURL string) (protocol.Metadata, time.Time, error) {
	var row protocol.CacheRow
	err := s.db.QueryRowContext(ctx,
		`SELECT base_url, payload, version, fetched_at FROM metadata_cache WHERE base_url = ?`, baseURL).
		Scan(&row.BaseURL, &row.Payload, &row.Version, &row.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Metadata{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return protocol.Metadata{}, time.Time{}, fmt.Errorf("load metadata for %s: %w", baseURL, err)
	}

	var meta protocol.Metadata
	if err := s.decode.Unmarshal(row.Payload, &meta); err != nil {
		return protocol.Metadata{}, time.Time{}, &protocol.DataError{Reason: "decode cached metadata", Err: err}
	}

	fetched, err := time.ParseInLocation(sqliteTime, row.FetchedAt, time.UTC)
	if err != nil {
		fetched = time.Time{}
	}
	return meta, fetched, nil
}
