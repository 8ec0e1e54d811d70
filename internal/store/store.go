// Package store implements the external key-value persistence the engine
// loads signatures from at boot and records mutations to: a SQLite table
// of images keyed by external id, independent of the in-memory index.
package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"iqdb/internal/signature"
)

// ErrNotFound is returned by Delete when the external id isn't present.
var ErrNotFound = errors.New("store: image not found")

// Record is one persisted image: its external id and signature.
type Record struct {
	ID  int64
	Sig signature.Signature
}

// Store is the persistence contract the engine consumes: signatures keyed
// by external id, loaded once at boot and mutated in step with the
// in-memory index. The store is authoritative for signatures; the engine
// is authoritative for ranking.
type Store interface {
	Load() ([]Record, error)
	Insert(id int64, sig signature.Signature) error
	Delete(id int64) (signature.Signature, error)
	GetMany(ids []int64) ([]Record, error)
}

// schema distinguishes the legacy post_id-keyed table layout from the
// current id-keyed one, so a corpus built by an older deployment loads
// without a manual migration step.
type schema int

const (
	schemaV2 schema = iota // id INTEGER PRIMARY KEY
	schemaV1                // post_id INTEGER PRIMARY KEY, id is a separate rowid
)

// SQLiteStore is the Store implementation backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	schema schema
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if necessary) a SQLite-backed store at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	// WAL mode allows concurrent readers with one writer; the in-memory
	// engine only ever issues one write at a time, so a small pool suffices.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	sc, err := detectOrCreateSchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, schema: sc}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: execute %s: %w", p, err)
		}
	}
	return nil
}

func detectOrCreateSchema(db *sql.DB) (schema, error) {
	var createSQL string
	row := db.QueryRow("SELECT sql FROM sqlite_master WHERE name='images'")
	if err := row.Scan(&createSQL); err != nil {
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("store: inspect schema: %w", err)
		}
		const create = `CREATE TABLE IF NOT EXISTS images (
			id      INTEGER PRIMARY KEY NOT NULL,
			avglf1  REAL NOT NULL,
			avglf2  REAL NOT NULL,
			avglf3  REAL NOT NULL,
			sig     BLOB NOT NULL
		)`
		if _, err := db.Exec(create); err != nil {
			return 0, fmt.Errorf("store: create images table: %w", err)
		}
		return schemaV2, nil
	}
	if containsPostID(createSQL) {
		return schemaV1, nil
	}
	return schemaV2, nil
}

func containsPostID(createSQL string) bool {
	for i := 0; i+len("post_id") <= len(createSQL); i++ {
		if createSQL[i:i+len("post_id")] == "post_id" {
			return true
		}
	}
	return false
}

// idColumn is the column this schema version exposes the external id
// through: V2 tables alias it as "id"; V1 tables keep a legacy "post_id"
// primary key alongside an internal "id" rowid.
func (s *SQLiteStore) idColumn() string {
	if s.schema == schemaV1 {
		return "post_id"
	}
	return "id"
}

// Load returns every persisted image, for the engine to rebuild its
// in-memory index from at boot.
func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT %s, avglf1, avglf2, avglf3, sig FROM images", s.idColumn()))
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetMany returns the persisted records for the given external ids, for
// post-query result enrichment. Ids not found in the store are omitted.
func (s *SQLiteStore) GetMany(ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s, avglf1, avglf2, avglf3, sig FROM images WHERE %s IN (%s)",
		s.idColumn(), s.idColumn(), placeholders)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get many: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var id int64
		var y, i, q float64
		var sigBytes []byte
		if err := rows.Scan(&id, &y, &i, &q, &sigBytes); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		sig, err := decodeCoefficients(y, i, q, sigBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{ID: id, Sig: sig})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows: %w", err)
	}
	return out, nil
}

// Insert persists a new image. The caller must ensure id is not already
// present; the store does not itself enforce replace semantics.
func (s *SQLiteStore) Insert(id int64, sig signature.Signature) error {
	sigBytes := encodeCoefficients(sig)
	column := "id"
	if s.schema == schemaV1 {
		column = "post_id"
	}
	query := fmt.Sprintf("INSERT INTO images (%s, avglf1, avglf2, avglf3, sig) VALUES (?, ?, ?, ?, ?)", column)
	_, err := s.db.Exec(query, id, sig.Y, sig.I, sig.Q, sigBytes)
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// Delete removes the image for id and returns the signature it had, so
// the caller can unregister it from the in-memory buckets. It returns
// ErrNotFound if id isn't present.
func (s *SQLiteStore) Delete(id int64) (signature.Signature, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return signature.Signature{}, fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback()

	var y, i, q float64
	var sigBytes []byte
	row := tx.QueryRow(fmt.Sprintf("SELECT avglf1, avglf2, avglf3, sig FROM images WHERE %s = ?", s.idColumn()), id)
	if err := row.Scan(&y, &i, &q, &sigBytes); err != nil {
		if err == sql.ErrNoRows {
			return signature.Signature{}, ErrNotFound
		}
		return signature.Signature{}, fmt.Errorf("store: delete lookup: %w", err)
	}
	sig, err := decodeCoefficients(y, i, q, sigBytes)
	if err != nil {
		return signature.Signature{}, err
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM images WHERE %s = ?", s.idColumn()), id); err != nil {
		return signature.Signature{}, fmt.Errorf("store: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return signature.Signature{}, fmt.Errorf("store: commit delete: %w", err)
	}
	return sig, nil
}

// encodeCoefficients packs the 120 coefficients as little-endian int16s,
// the blob layout the images table has always used.
func encodeCoefficients(sig signature.Signature) []byte {
	buf := make([]byte, signature.NumCoefficients*2)
	for i, c := range sig.Coef {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(c))
	}
	return buf
}

func decodeCoefficients(y, i, q float64, sigBytes []byte) (signature.Signature, error) {
	if len(sigBytes) != signature.NumCoefficients*2 {
		return signature.Signature{}, fmt.Errorf("store: sig blob has %d bytes, want %d", len(sigBytes), signature.NumCoefficients*2)
	}
	var sig signature.Signature
	sig.Y, sig.I, sig.Q = y, i, q
	for j := 0; j < signature.NumCoefficients; j++ {
		sig.Coef[j] = int16(binary.LittleEndian.Uint16(sigBytes[j*2:]))
	}
	sig.Normalize()
	return sig, nil
}
