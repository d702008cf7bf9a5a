package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Movie is one catalog entry. IMDbID is unique across the catalog.
type Movie struct {
	ID        int
	Title     string
	Year      string
	IMDbID    string
	Plot      *string
	Poster    *string
	CreatedAt time.Time
}

// NewMovie holds the fields of a movie that has not been inserted yet.
type NewMovie struct {
	Title  string
	Year   string
	IMDbID string
	Plot   *string
	Poster *string
}

var movieSelect = []string{"id", "title", "year", "imdb_id", "plot", "poster", "created_at"}

func scanMovies(rows *entsql.Rows) ([]*Movie, error) {
	var movies []*Movie
	for rows.Next() {
		var (
			m            Movie
			plot, poster entsql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Title, &m.Year, &m.IMDbID, &plot, &poster, &m.CreatedAt); err != nil {
			return nil, err
		}
		if plot.Valid {
			m.Plot = &plot.String
		}
		if poster.Valid {
			m.Poster = &poster.String
		}
		movies = append(movies, &m)
	}
	return movies, rows.Err()
}

func (s *Store) selectMovies(ctx context.Context, sel *entsql.Selector) ([]*Movie, error) {
	var movies []*Movie
	err := query(ctx, s.drv, sel, func(rows *entsql.Rows) error {
		var err error
		movies, err = scanMovies(rows)
		return err
	})
	return movies, err
}

// CountMovies returns the number of movies in the catalog.
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	n, err := count(ctx, s.drv, s.builder(), tableMovies, nil)
	if err != nil {
		return 0, fmt.Errorf("store: count movies: %w", err)
	}
	return n, nil
}

// ListMovies returns up to limit movies ordered by id, skipping the first skip.
func (s *Store) ListMovies(ctx context.Context, skip, limit int) ([]*Movie, error) {
	b := s.builder()
	sel := b.Select(movieSelect...).
		From(b.Table(tableMovies)).
		OrderBy("id").
		Limit(limit).
		Offset(skip)
	movies, err := s.selectMovies(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("store: list movies: %w", err)
	}
	return movies, nil
}

// GetMovie returns the movie with the given id or ErrNotFound.
func (s *Store) GetMovie(ctx context.Context, id int) (*Movie, error) {
	b := s.builder()
	sel := b.Select(movieSelect...).
		From(b.Table(tableMovies)).
		Where(entsql.EQ("id", id))
	movies, err := s.selectMovies(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("store: get movie %d: %w", id, err)
	}
	if len(movies) == 0 {
		return nil, ErrNotFound
	}
	return movies[0], nil
}

// FindMovieByTitle returns the lowest-id movie whose title contains q,
// ignoring case, or ErrNotFound.
func (s *Store) FindMovieByTitle(ctx context.Context, q string) (*Movie, error) {
	b := s.builder()
	sel := b.Select(movieSelect...).
		From(b.Table(tableMovies)).
		Where(entsql.ContainsFold("title", q)).
		OrderBy("id").
		Limit(1)
	movies, err := s.selectMovies(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("store: find movie by title: %w", err)
	}
	if len(movies) == 0 {
		return nil, ErrNotFound
	}
	return movies[0], nil
}

// CreateMovie inserts a single movie. A duplicate IMDbID yields ErrConflict.
func (s *Store) CreateMovie(ctx context.Context, nm NewMovie) (*Movie, error) {
	m, err := insertMovie(ctx, s.drv, s.builder(), nm, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("store: create movie %s: %w", nm.IMDbID, err)
	}
	return m, nil
}

// DeleteMovie removes the movie with the given id or returns ErrNotFound.
func (s *Store) DeleteMovie(ctx context.Context, id int) error {
	n, err := exec(ctx, s.drv, s.builder().Delete(tableMovies).Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("store: delete movie %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertMovie(ctx context.Context, conn dialect.ExecQuerier, b *entsql.DialectBuilder, nm NewMovie, now time.Time) (*Movie, error) {
	if nm.IMDbID == "" {
		return nil, errors.New("missing imdb id")
	}
	ins := b.Insert(tableMovies).
		Columns("title", "year", "imdb_id", "plot", "poster", "created_at").
		Values(nm.Title, nm.Year, nm.IMDbID, nullable(nm.Plot), nullable(nm.Poster), now)
	id, err := insertReturningID(ctx, conn, ins)
	if err != nil {
		return nil, err
	}
	return &Movie{
		ID:        id,
		Title:     nm.Title,
		Year:      nm.Year,
		IMDbID:    nm.IMDbID,
		Plot:      nm.Plot,
		Poster:    nm.Poster,
		CreatedAt: now,
	}, nil
}

func nullable(s *string) entsql.NullString {
	if s == nil {
		return entsql.NullString{}
	}
	return entsql.NullString{String: *s, Valid: true}
}
