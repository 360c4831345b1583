package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"

	"video-rater/api/internal/rating"
)

// Database drivers understood by SQL.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQL keeps the descriptions and ratings tables in Postgres or SQLite.
type SQL struct {
	DB     *sql.DB
	driver string
}

// OpenSQL opens dsn with driver (DriverPostgres or DriverSQLite) and checks the connection.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	switch driver {
	case DriverPostgres:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	case DriverSQLite:
		// one writer; the pragmas below are per connection
		db.SetMaxOpenConns(1)
		for _, p := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return &SQL{DB: db, driver: driver}, nil
}

func (s *SQL) Close() error { return s.DB.Close() }

// EnsureSchema creates the descriptions and ratings tables when missing.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	id := "integer primary key autoincrement"
	if s.driver == DriverPostgres {
		id = "bigserial primary key"
	}
	stmts := []string{
		`create table if not exists descriptions (
  id ` + id + `,
  model text not null default '',
  description text not null default '',
  video_path text not null
)`,
		`create table if not exists ratings (
  id ` + id + `,
  model text not null,
  description text not null,
  video_path text not null,
  quality text not null,
  name text not null,
  rated_at timestamp not null default current_timestamp
)`,
		`create index if not exists ratings_name_idx on ratings (name, video_path)`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Records returns every description row in insertion order.
func (s *SQL) Records(ctx context.Context) ([]rating.DescriptionRow, error) {
	const q = `select model, description, video_path from descriptions order by id`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rating.DescriptionRow
	for rows.Next() {
		var r rating.DescriptionRow
		if err := rows.Scan(&r.Model, &r.Description, &r.VideoPath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddDescriptions inserts candidate descriptions (seeding and tests).
func (s *SQL) AddDescriptions(ctx context.Context, rows []rating.DescriptionRow) error {
	q := s.rebind(`insert into descriptions (model, description, video_path) values (?, ?, ?)`)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, q, r.Model, r.Description, r.VideoPath); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRows inserts all rated rows in one transaction.
func (s *SQL) AppendRows(ctx context.Context, rows []rating.RatedRow) error {
	q := s.rebind(`insert into ratings (model, description, video_path, quality, name) values (?, ?, ?, ?, ?)`)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, q, r.Model, r.Description, r.VideoPath, r.Quality, r.RaterName); err != nil {
				return err
			}
		}
		return nil
	})
}

// RatedPaths returns the video paths rater has rated at least once.
func (s *SQL) RatedPaths(ctx context.Context, rater string) (map[string]bool, error) {
	q := s.rebind(`select distinct video_path from ratings where name = ?`)
	rows, err := s.DB.QueryContext(ctx, q, rater)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = true
	}
	return out, rows.Err()
}

// Ratings returns every stored rating in insertion order, values in rating.RatedColumns order.
func (s *SQL) Ratings(ctx context.Context) ([][]string, error) {
	const q = `select model, description, video_path, quality, name from ratings order by id`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		v := make([]string, 5)
		if err := rows.Scan(&v[0], &v[1], &v[2], &v[3], &v[4]); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQL) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQL) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
