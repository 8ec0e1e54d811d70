package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"iqdb/internal/signature"
)

func sigWithY(y float64) signature.Signature {
	var s signature.Signature
	s.Y = y
	n := int16(1)
	for i := range s.Coef {
		s.Coef[i] = n
		n++
	}
	s.Normalize()
	return s
}

func TestOpenCreatesSchemaV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.schema != schemaV2 {
		t.Fatalf("schema = %v, want schemaV2", s.schema)
	}
	if col := s.idColumn(); col != "id" {
		t.Fatalf("idColumn() = %q, want %q", col, "id")
	}
}

func TestOpenDetectsSchemaV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open fixture: %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE images (
		post_id INTEGER PRIMARY KEY NOT NULL,
		id      INTEGER NOT NULL,
		avglf1  REAL NOT NULL,
		avglf2  REAL NOT NULL,
		avglf3  REAL NOT NULL,
		sig     BLOB NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create fixture table: %v", err)
	}
	raw.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.schema != schemaV1 {
		t.Fatalf("schema = %v, want schemaV1", s.schema)
	}
	if col := s.idColumn(); col != "post_id" {
		t.Fatalf("idColumn() = %q, want %q", col, "post_id")
	}
}

func TestInsertLoadGetManyDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sig1 := sigWithY(1)
	sig2 := sigWithY(2)
	if err := s.Insert(1, sig1); err != nil {
		t.Fatalf("Insert(1): %v", err)
	}
	if err := s.Insert(2, sig2); err != nil {
		t.Fatalf("Insert(2): %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(records))
	}

	got, err := s.GetMany([]int64{2})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("GetMany([2]) = %+v, want one record with ID 2", got)
	}
	if got[0].Sig.Y != sig2.Y {
		t.Fatalf("GetMany round-trip Y = %v, want %v", got[0].Sig.Y, sig2.Y)
	}

	deleted, err := s.Delete(1)
	if err != nil {
		t.Fatalf("Delete(1): %v", err)
	}
	if deleted.Y != sig1.Y {
		t.Fatalf("Delete(1) returned Y = %v, want %v", deleted.Y, sig1.Y)
	}

	if _, err := s.Delete(1); err != ErrNotFound {
		t.Fatalf("Delete(1) again = %v, want ErrNotFound", err)
	}

	remaining, err := s.Load()
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("Load after delete = %+v, want only id 2", remaining)
	}
}

func TestGetManyEmptyIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, err := s.GetMany(nil)
	if err != nil {
		t.Fatalf("GetMany(nil): %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetMany(nil) = %+v, want empty", got)
	}
}

func TestCoefficientRoundTripPreservesOrder(t *testing.T) {
	sig := sigWithY(3)
	buf := encodeCoefficients(sig)
	decoded, err := decodeCoefficients(sig.Y, sig.I, sig.Q, buf)
	if err != nil {
		t.Fatalf("decodeCoefficients: %v", err)
	}
	if decoded != sig {
		t.Fatalf("round trip = %+v, want %+v", decoded, sig)
	}
}
