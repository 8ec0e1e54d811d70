package engine

import (
	"testing"

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

func TestQueryOnEmptyDBReturnsNil(t *testing.T) {
	db := New()
	if got := db.Query(sigWithY(1), 10); got != nil {
		t.Fatalf("Query on empty DB = %v, want nil", got)
	}
}

func TestInsertThenQueryReturnsExactMatch(t *testing.T) {
	db := New()
	sig := sigWithY(5)
	if err := db.Insert(42, sig); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results := db.Query(sig, 5)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != 42 {
		t.Fatalf("ID = %d, want 42", results[0].ID)
	}
	if diff := results[0].Score - 100; diff > 0.01 || diff < -0.01 {
		t.Fatalf("Score = %v, want ~100", results[0].Score)
	}
}

func TestInsertRejectsDuplicateExternalID(t *testing.T) {
	db := New()
	sig := sigWithY(1)
	if err := db.Insert(1, sig); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Insert(1, sig); err != ErrAlreadyIndexed {
		t.Fatalf("second Insert error = %v, want ErrAlreadyIndexed", err)
	}
}

// Two identical signatures inserted under different external ids must
// come back with identical scores, ordered by ascending external id.
func TestQueryTieBreaksAscendingByExternalID(t *testing.T) {
	db := New()
	sig := sigWithY(7)
	if err := db.Insert(20, sig); err != nil {
		t.Fatalf("Insert(20): %v", err)
	}
	if err := db.Insert(10, sig); err != nil {
		t.Fatalf("Insert(10): %v", err)
	}

	results := db.Query(sig, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("scores differ: %v vs %v, want identical", results[0].Score, results[1].Score)
	}
	if results[0].ID != 10 || results[1].ID != 20 {
		t.Fatalf("IDs = [%d, %d], want ascending [10, 20] on a score tie", results[0].ID, results[1].ID)
	}
}

func TestQueryTruncatesToLimit(t *testing.T) {
	db := New()
	sig := sigWithY(3)
	for id := int64(1); id <= 5; id++ {
		if err := db.Insert(id, sig); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	results := db.Query(sig, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestQueryLimitZeroReturnsNil(t *testing.T) {
	db := New()
	if err := db.Insert(1, sigWithY(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := db.Query(sigWithY(1), 0); got != nil {
		t.Fatalf("Query with limit 0 = %v, want nil", got)
	}
}

func TestDeleteRemovesFromIndexAndQuery(t *testing.T) {
	db := New()
	sig := sigWithY(9)
	if err := db.Insert(1, sig); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Delete(1, sig); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if db.Contains(1) {
		t.Fatal("Contains(1) = true after delete")
	}
	if got := db.ImageCount(); got != 0 {
		t.Fatalf("ImageCount() = %d, want 0", got)
	}
	for _, r := range db.Query(sig, 10) {
		if r.ID == 1 {
			t.Fatal("deleted id 1 still returned by Query")
		}
	}
}

func TestDeleteUnknownIDReturnsErrNotFound(t *testing.T) {
	db := New()
	if err := db.Delete(99, sigWithY(1)); err != ErrNotFound {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestContainsAndImageCount(t *testing.T) {
	db := New()
	if db.Contains(1) {
		t.Fatal("Contains(1) = true on empty DB")
	}
	if got := db.ImageCount(); got != 0 {
		t.Fatalf("ImageCount() = %d, want 0", got)
	}

	if err := db.Insert(1, sigWithY(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !db.Contains(1) {
		t.Fatal("Contains(1) = false after insert")
	}
	if got := db.ImageCount(); got != 1 {
		t.Fatalf("ImageCount() = %d, want 1", got)
	}
}

func TestReinsertAfterDeleteHitsNewID(t *testing.T) {
	db := New()
	sig := sigWithY(11)
	if err := db.Insert(1, sig); err != nil {
		t.Fatalf("Insert(1): %v", err)
	}
	if err := db.Delete(1, sig); err != nil {
		t.Fatalf("Delete(1): %v", err)
	}
	if err := db.Insert(2, sig); err != nil {
		t.Fatalf("Insert(2): %v", err)
	}

	results := db.Query(sig, 1)
	if len(results) != 1 || results[0].ID != 2 {
		t.Fatalf("Query = %+v, want single hit on id 2", results)
	}
	if diff := results[0].Score - 100; diff > 0.01 || diff < -0.01 {
		t.Fatalf("Score = %v, want ~100", results[0].Score)
	}
}
