package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options selects and addresses the database.
type Options struct {
	Driver string // "sqlite" (default) or "postgres"
	DSN    string // file path for sqlite, connection string for postgres
}

// Store persists companies, sources, postings, signals and snapshots.
// Queries are written with ? placeholders and rebound per driver.
type Store struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	driver, dsn, err := normalize(opts)
	if err != nil {
		return nil, err
	}

	if err := Migrate(driver, dsn, logger); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; busy_timeout in the DSN covers external readers.
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, driver: driver, logger: logger}, nil
}

// New wraps an existing connection without running migrations. Used with
// sqlmock in tests and by callers that manage the schema themselves.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, driver: db.DriverName(), logger: logger}
}

// normalize fills defaults and adds the sqlite pragmas we rely on.
func normalize(opts Options) (string, string, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	dsn := strings.TrimSpace(opts.DSN)

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "hiringradar.db"
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	case DriverPostgres:
		if dsn == "" {
			return "", "", fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	return driver, dsn, nil
}

// Driver reports the underlying driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func insertReturningID(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
