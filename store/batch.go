package store

import (
	"context"
	"fmt"
	"time"
)

// Batch stages movies in memory and writes everything staged since the last
// commit in a single transaction. Staged movies that were never committed are
// simply dropped, so a crash mid-batch leaves the catalog at the last commit.
//
// A Batch is not safe for concurrent use.
type Batch struct {
	s      *Store
	staged []NewMovie
}

// NewBatch returns an empty batch bound to s.
func (s *Store) NewBatch() *Batch {
	return &Batch{s: s}
}

// IsEmpty reports whether the catalog holds no movies at all.
func (b *Batch) IsEmpty(ctx context.Context) (bool, error) {
	n, err := b.s.CountMovies(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Stage queues m for the next Commit.
func (b *Batch) Stage(m NewMovie) {
	b.staged = append(b.staged, m)
}

// Pending returns the number of staged movies.
func (b *Batch) Pending() int {
	return len(b.staged)
}

// Commit inserts every staged movie in one transaction and returns how many
// were written. On failure the transaction is rolled back, the staged movies
// are discarded and the error is returned; a duplicate IMDb id matches
// ErrConflict.
func (b *Batch) Commit(ctx context.Context) (int, error) {
	staged := b.staged
	b.staged = nil
	if len(staged) == 0 {
		return 0, nil
	}

	tx, err := b.s.drv.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin batch: %w", err)
	}
	builder := b.s.builder()
	now := time.Now().UTC()
	for _, m := range staged {
		if _, err := insertMovie(ctx, tx, builder, m, now); err != nil {
			return 0, rollback(tx, fmt.Errorf("store: commit batch (%s): %w", m.IMDbID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit batch: %w", err)
	}
	return len(staged), nil
}

// Rollback discards every staged movie without touching the database.
func (b *Batch) Rollback() {
	b.staged = nil
}
