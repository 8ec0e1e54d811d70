// Package engine implements the DB facade: the ordered list of chunks an
// image collection is sharded into, the external-id bijection, and the
// concurrency-safe insert/delete/query operations the rest of the service
// calls.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"iqdb/internal/chunk"
	"iqdb/internal/signature"
)

// ErrNotFound is returned by operations that look up an external id that
// isn't currently indexed.
var ErrNotFound = fmt.Errorf("engine: image not found")

// ErrAlreadyIndexed is the precondition-violation error Insert returns
// when the caller passes an external id that's already present. Per the
// core's contract this is a caller bug, not an expected runtime outcome;
// callers that want replace-on-conflict semantics (as the HTTP surface
// does) must Delete first.
var ErrAlreadyIndexed = fmt.Errorf("engine: image already indexed")

// Result is one scored match, keyed by the caller-supplied external id.
type Result struct {
	Score float32
	ID    int64
}

// DB is the in-memory search index. The zero value is not usable; use New.
type DB struct {
	mu        sync.RWMutex
	chunks    []*chunk.Chunk
	indexToID []int64
	idToIndex map[int64]uint32
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		idToIndex: make(map[int64]uint32),
	}
}

// Contains reports whether id is currently indexed.
func (db *DB) Contains(id int64) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.idToIndex[id]
	return ok
}

// ImageCount returns the number of currently-indexed images.
func (db *DB) ImageCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.idToIndex)
}

// Insert adds sig under external id. It returns ErrAlreadyIndexed if id is
// already present; the caller (typically the HTTP layer) is responsible
// for deciding whether to Delete first and retry.
func (db *DB) Insert(id int64, sig signature.Signature) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.idToIndex[id]; ok {
		return ErrAlreadyIndexed
	}

	dense := uint32(len(db.indexToID))
	if len(db.chunks) == 0 || db.chunks[len(db.chunks)-1].IsFull() {
		db.chunks = append(db.chunks, chunk.New(dense))
	}
	last := db.chunks[len(db.chunks)-1]

	db.indexToID = append(db.indexToID, id)
	db.idToIndex[id] = dense
	last.Append(dense, sig)
	return nil
}

// Delete removes id from the index. sig must match what was originally
// indexed for id, since the dense-to-chunk bucket layout only knows how
// to unregister a signature it can recompute bucket addresses for. It
// returns ErrNotFound if id isn't currently indexed.
func (db *DB) Delete(id int64, sig signature.Signature) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	dense, ok := db.idToIndex[id]
	if !ok {
		return ErrNotFound
	}
	delete(db.idToIndex, id)

	chunkIndex := dense / chunk.Size
	if int(chunkIndex) < len(db.chunks) {
		db.chunks[chunkIndex].Remove(dense, sig)
	}
	return nil
}

type chunkResult struct {
	results []chunk.Result
}

// Query scores target against every indexed image and returns the best
// limit matches, ordered by descending score then ascending external id.
// Per-chunk scoring runs concurrently; chunks are typically few (one per
// 65536 images) so one goroutine per chunk is the natural fan-out unit.
func (db *DB) Query(target signature.Signature, limit int) []Result {
	if limit <= 0 {
		return nil
	}

	// Hold the read lock for the full scan: Insert appends in place to the
	// last chunk's average-component slices, so letting a writer in while
	// the per-chunk goroutines below are still reading those slices would
	// race.
	db.mu.RLock()
	defer db.mu.RUnlock()

	chunks := db.chunks
	indexToID := db.indexToID

	if len(chunks) == 0 {
		return nil
	}

	resultsCh := make(chan chunkResult, len(chunks))
	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c *chunk.Chunk) {
			defer wg.Done()
			resultsCh <- chunkResult{results: c.Query(target, limit)}
		}(c)
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var all []Result
	for pr := range resultsCh {
		for _, r := range pr.results {
			all = append(all, Result{Score: r.Score, ID: indexToID[r.Index]})
		}
	}

	// Descending by score; ties broken by ascending external id (the same
	// order the per-chunk buffer already keeps for equal-score entries).
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}
