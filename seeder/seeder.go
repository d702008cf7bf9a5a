// Package seeder populates an empty movie catalog from OMDB at startup.
//
// A run walks a fixed list of search terms page by page, fetches full details
// for every match, and stages movies until a target count is reached. Staged
// movies are committed in batches; a missing page or detail is skipped, while
// a failed commit ends the run with an error.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddevcap/movie-catalog/metrics"
	"github.com/ddevcap/movie-catalog/omdb"
	"github.com/ddevcap/movie-catalog/store"
)

// Source looks movies up. A false result means absent, whatever the cause.
type Source interface {
	Search(ctx context.Context, term string, page int) ([]omdb.SearchResult, bool)
	Details(ctx context.Context, imdbID string) (*omdb.Details, bool)
}

// Catalog is where seeded movies are written. *store.Batch implements it.
type Catalog interface {
	IsEmpty(ctx context.Context) (bool, error)
	Stage(m store.NewMovie)
	Commit(ctx context.Context) (int, error)
	Rollback()
}

// Result describes a finished run.
type Result struct {
	// Skipped is true when the catalog already held movies.
	Skipped bool
	// Inserted is the number of movies committed.
	Inserted int
	// Cursor is where the run stopped.
	Cursor Cursor
}

// Seeder runs a Plan against a Source and a Catalog.
type Seeder struct {
	source  Source
	catalog Catalog
	plan    Plan
}

// New returns a seeder. A non-positive batch size commits every movie on its own.
func New(source Source, catalog Catalog, plan Plan) *Seeder {
	if plan.BatchSize <= 0 {
		plan.BatchSize = 1
	}
	return &Seeder{source: source, catalog: catalog, plan: plan}
}

// Run seeds the catalog if it is empty. It returns an error only when the
// emptiness check or a commit fails, or ctx is cancelled; in every case the
// uncommitted movies are discarded and earlier commits are kept.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	empty, err := s.catalog.IsEmpty(ctx)
	if err != nil {
		metrics.IncSeedRun("failed")
		return Result{}, fmt.Errorf("seed: checking catalog: %w", err)
	}
	if !empty {
		slog.Info("seed: catalog already populated, skipping")
		metrics.IncSeedRun("skipped")
		return Result{Skipped: true}, nil
	}

	start := time.Now()
	slog.Info("seed: starting",
		"terms", len(s.plan.Terms),
		"page_cap", s.plan.PageCap,
		"target", s.plan.Target,
	)

	r := &run{Seeder: s, seen: make(map[string]struct{})}
	c := s.plan.Start()
	for !s.plan.Done(c) {
		if err := ctx.Err(); err != nil {
			return r.fail(c, fmt.Errorf("seed: %w", err))
		}
		added, exhausted, err := r.page(ctx, c)
		if err != nil {
			return r.fail(c, err)
		}
		c = s.plan.Advance(c, added, exhausted)
	}

	if err := r.commit(ctx); err != nil {
		return r.fail(c, err)
	}

	metrics.IncSeedRun("completed")
	slog.Info("seed: finished",
		"inserted", r.inserted,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return Result{Inserted: r.inserted, Cursor: c}, nil
}

// run holds the state of one invocation of Run.
type run struct {
	*Seeder
	// seen holds the IMDb ids staged so far, both as found by search and as
	// returned with the details, so a movie is only inserted once.
	seen     map[string]struct{}
	inserted int
}

// page searches one page at c and stages every new match with details,
// committing whenever a batch fills up.
func (r *run) page(ctx context.Context, c Cursor) (added int, exhausted bool, err error) {
	term := r.plan.Terms[c.Term]
	matches, ok := r.source.Search(ctx, term, c.Page)
	if !ok || len(matches) == 0 {
		slog.Debug("seed: no more results", "term", term, "page", c.Page)
		return 0, true, nil
	}

	room := r.plan.room(c)
	for _, m := range matches {
		if added >= room {
			break
		}
		if m.IMDbID == "" {
			continue
		}
		if _, dup := r.seen[m.IMDbID]; dup {
			continue
		}
		d, ok := r.source.Details(ctx, m.IMDbID)
		if !ok {
			slog.Debug("seed: skipping match without details", "imdb_id", m.IMDbID)
			continue
		}
		// OMDB may resolve a search hit to a different canonical id.
		r.seen[m.IMDbID] = struct{}{}
		if _, dup := r.seen[d.IMDbID]; dup && d.IMDbID != m.IMDbID {
			continue
		}
		r.seen[d.IMDbID] = struct{}{}
		r.catalog.Stage(d.NewMovie())
		added++
		if (c.Accumulated+added)%r.plan.BatchSize == 0 {
			if err := r.commit(ctx); err != nil {
				return added, false, err
			}
		}
	}
	slog.Debug("seed: page done", "term", term, "page", c.Page, "added", added)
	return added, false, nil
}

func (r *run) commit(ctx context.Context) error {
	n, err := r.catalog.Commit(ctx)
	if err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	if n == 0 {
		return nil
	}
	r.inserted += n
	metrics.IncSeedCommit()
	metrics.AddSeededMovies(n)
	slog.Info("seed: committed batch", "movies", n, "total", r.inserted)
	return nil
}

func (r *run) fail(c Cursor, err error) (Result, error) {
	r.catalog.Rollback()
	metrics.IncSeedRun("failed")
	slog.Error("seed: aborted", "error", err, "inserted", r.inserted)
	return Result{Inserted: r.inserted, Cursor: c}, err
}
