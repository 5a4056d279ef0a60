package state

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
)

const defaultTable = "connector_state"

// dialect differs only in bind placeholders.
type dialect struct {
	name        string
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	sqliteDialect   = dialect{name: "sqlite", placeholder: func(int) string { return "?" }}
)

// SQLStore keeps one row per stream in a table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string

	loadQuery   string
	saveQuery   string
	deleteQuery string
}

// NewSQLiteStore opens a sqlite database. Use ":memory:" for tests.
func NewSQLiteStore(ctx context.Context, dsn, table string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state dsn is required for the sqlite backend")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "open sqlite database")
	}
	// a single connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)
	return openSQLStore(ctx, db, sqliteDialect, table)
}

// NewPostgresStore connects through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, dsn, table string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state dsn is required for the postgres backend")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "open postgres database")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return openSQLStore(ctx, db, postgresDialect, table)
}

func openSQLStore(ctx context.Context, db *sql.DB, d dialect, table string) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "ping "+d.name+" database")
	}
	s, err := newSQLStore(ctx, db, d, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// newSQLStore prepares queries and creates the table if needed.
func newSQLStore(ctx context.Context, db *sql.DB, d dialect, table string) (*SQLStore, error) {
	if table == "" {
		table = defaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid state table name %q", table)
	}

	s := &SQLStore{db: db, dialect: d, table: table}
	p := d.placeholder
	s.loadQuery = fmt.Sprintf(`SELECT state FROM %s WHERE stream = %s`, table, p(1))
	s.saveQuery = fmt.Sprintf(`INSERT INTO %s (stream, state, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (stream) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		table, p(1), p(2), p(3))
	s.deleteQuery = fmt.Sprintf(`DELETE FROM %s WHERE stream = %s`, table, p(1))

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		stream TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "create state table")
	}
	return s, nil
}

func (s *SQLStore) Load(ctx context.Context, stream string) (core.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.loadQuery, stream).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "load state for "+stream)
	}
	return decode([]byte(raw))
}

func (s *SQLStore) Save(ctx context.Context, stream string, state core.State) error {
	if err := validateStream(stream); err != nil {
		return err
	}
	b, err := encode(state)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.saveQuery, stream, string(b), time.Now().UTC()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "save state for "+stream)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, stream string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, stream); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "delete state for "+stream)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
