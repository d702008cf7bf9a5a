// Package store persists the movie catalog, user accounts and sessions.
//
// Queries are built with ent's dialect/sql builders and the schema is applied
// with ent's Atlas-backed migrator, so the same code runs against PostgreSQL
// in production and SQLite in tests and local runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: unique constraint violated")
)

// Store is the relational backing store. It is safe for concurrent use.
type Store struct {
	drv *entsql.Driver
}

// Open connects to the database described by dsn.
//
// postgres:// and postgresql:// URLs are opened with lib/pq. sqlite://<path>,
// file: URIs and :memory: are opened with the pure-Go SQLite driver, with
// foreign keys switched on as ent's migrator requires.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driverName, dialectName, source, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialectName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", dialectName, err)
	}
	return &Store{drv: entsql.OpenDB(dialectName, db)}, nil
}

// resolveDSN maps a DATABASE_URL onto a database/sql driver name, an ent
// dialect and the driver-specific data source.
func resolveDSN(dsn string) (driverName, dialectName, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dialect.Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", dialect.SQLite, sqliteSource("file:" + strings.TrimPrefix(dsn, "sqlite://")), nil
	case dsn == ":memory:":
		// A plain :memory: database is private to one connection; share it
		// across the pool instead.
		return "sqlite", dialect.SQLite, sqliteSource("file:movies?mode=memory&cache=shared"), nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", dialect.SQLite, sqliteSource(dsn), nil
	default:
		return "", "", "", fmt.Errorf("store: unsupported database url %q", redact(dsn))
	}
}

// sqliteSource appends the pragmas every connection needs. modernc.org/sqlite
// takes _pragma=name(value) rather than mattn-style _fk=1.
func sqliteSource(source string) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	if !strings.Contains(source, "foreign_keys") {
		source += sep + "_pragma=foreign_keys(1)"
		sep = "&"
	}
	if !strings.Contains(source, "busy_timeout") {
		source += sep + "_pragma=busy_timeout(5000)"
	}
	return source
}

// redact strips everything before the host so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// Migrate creates or updates the movies, users and sessions tables.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Dialect returns the ent dialect name of the underlying database.
func (s *Store) Dialect() string {
	return s.drv.Dialect()
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// query runs q on conn and hands the open rows to scan. Rows are always closed.
func query(ctx context.Context, conn dialect.ExecQuerier, q entsql.Querier, scan func(*entsql.Rows) error) error {
	text, args := q.Query()
	rows := &entsql.Rows{}
	if err := conn.Query(ctx, text, args, rows); err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return scan(rows)
}

// exec runs q on conn and returns the number of affected rows.
func exec(ctx context.Context, conn dialect.ExecQuerier, q entsql.Querier) (int, error) {
	text, args := q.Query()
	var res entsql.Result
	if err := conn.Exec(ctx, text, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// insertReturningID runs an INSERT ... RETURNING id and returns the new id.
func insertReturningID(ctx context.Context, conn dialect.ExecQuerier, ins *entsql.InsertBuilder) (int, error) {
	var id int
	err := query(ctx, conn, ins.Returning("id"), func(rows *entsql.Rows) error {
		var err error
		id, err = entsql.ScanInt(rows)
		return err
	})
	if err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return 0, err
	}
	return id, nil
}

func count(ctx context.Context, conn dialect.ExecQuerier, b *entsql.DialectBuilder, table string, where *entsql.Predicate) (int, error) {
	sel := b.Select().Count().From(b.Table(table))
	if where != nil {
		sel = sel.Where(where)
	}
	var n int
	err := query(ctx, conn, sel, func(rows *entsql.Rows) error {
		var err error
		n, err = entsql.ScanInt(rows)
		return err
	})
	return n, err
}

// rollback rolls tx back and attaches any rollback failure to err.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
	}
	return err
}
