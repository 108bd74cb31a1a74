package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ecomarket/localstore/internal/platform/errors"
	"github.com/ecomarket/localstore/internal/platform/storage/sqlitemigrate"
	"github.com/ecomarket/localstore/internal/platform/timeouts"
	"github.com/ecomarket/localstore/internal/services/localstore/storage"
	"github.com/ecomarket/localstore/internal/services/localstore/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func parseNullTime(value sql.NullString) (time.Time, error) {
	if !value.Valid || value.String == "" {
		return time.Time{}, nil
	}
	return parseTime(value.String)
}

func nullTime(value time.Time) sql.NullString {
	if value.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(value), Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// Store is a migrated SQLite handle for the local marketplace store.
type Store struct {
	sqlDB  *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

type options struct {
	logger         *slog.Logger
	registry       *sqlitemigrate.Registry
	now            func() time.Time
	startupTimeout time.Duration
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for startup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry replaces the embedded migrations. Used by upgrade tests that
// need a store at an older version.
func WithRegistry(registry *sqlitemigrate.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock overrides the clock for migration records and synced_at values.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStartupTimeout bounds opening and migrating the store.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.startupTimeout = timeout
		}
	}
}

var busyTimeoutPragma = "_pragma=busy_timeout(" + strconv.FormatInt(timeouts.BusyWait.Milliseconds(), 10) + ")"

func dsn(path string) string {
	return path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&" + busyTimeoutPragma +
		"&_pragma=synchronous(NORMAL)"
}

// readOnlyDSN opens an existing store without write access. SQLite honors
// mode=ro only for file: URIs, whose path must be absolute.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve store path: %w", err)
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	uri := url.URL{Scheme: "file", Path: slashed}
	return uri.String() + "?mode=ro&" + busyTimeoutPragma, nil
}

// Open opens or creates the store at path, enables WAL and foreign keys, and
// applies pending migrations before returning.
//
// No handle is returned unless every pending migration succeeded; on any
// failure the database is closed and a fatal *apperrors.Error is returned.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := options{
		logger:         slog.Default(),
		now:            time.Now,
		startupTimeout: timeouts.StoreStartup,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.CodeStoreOpenFailed, "storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStoreOpenFailed, "create storage dir", err)
		}
	}

	registry := o.registry
	if registry == nil {
		loaded, err := migrations.Registry()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStoreMigrationFailed, "load migrations", err)
		}
		registry = loaded
	}
	runner, err := sqlitemigrate.NewRunner(registry,
		sqlitemigrate.WithLogger(o.logger),
		sqlitemigrate.WithClock(o.now),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreMigrationFailed, "create migration runner", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, o.startupTimeout)
	defer cancel()

	sqlDB, err := sql.Open("sqlite", dsn(cleanPath))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreOpenFailed, "open sqlite db", err)
	}
	if err := sqlDB.PingContext(startCtx); err != nil {
		_ = sqlDB.Close()
		return nil, startupError(startCtx, apperrors.CodeStoreOpenFailed, "ping sqlite db", err)
	}
	if err := verifyPragmas(startCtx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, startupError(startCtx, apperrors.CodeStorePragmaFailed, "configure sqlite db", err)
	}

	result, err := runner.Apply(startCtx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		if startCtx.Err() != nil {
			return nil, startupError(startCtx, apperrors.CodeStoreMigrationFailed, "run migrations", err)
		}
		return nil, apperrors.WrapWithMetadata(
			apperrors.CodeStoreMigrationFailed,
			"run migrations",
			map[string]string{"path": cleanPath, "version": strconv.Itoa(result.To)},
			err,
		)
	}
	o.logger.Info("local store ready", "path", cleanPath, "version", result.To, "applied", len(result.Applied))

	return &Store{sqlDB: sqlDB, logger: o.logger, now: o.now}, nil
}

func startupError(ctx context.Context, code apperrors.Code, message string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeStoreStartupTimeout, message+": startup timed out", err)
	}
	return apperrors.Wrap(code, message, err)
}

func verifyPragmas(ctx context.Context, db *sql.DB) error {
	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("check sqlite journal mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("sqlite journal mode is %q, want wal", journalMode)
	}
	var enabled int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB exposes the migrated handle for callers that need raw SQL.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	return sqlitemigrate.CurrentVersion(ctx, s.sqlDB)
}

// MigrationRecords lists applied migrations in version order.
func (s *Store) MigrationRecords(ctx context.Context) ([]sqlitemigrate.Record, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return sqlitemigrate.AppliedRecords(ctx, s.sqlDB)
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) syncedAt() string {
	return formatTime(s.now())
}

// classifyError maps SQLite constraint failures onto storage sentinels while
// keeping the driver error in the chain.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrAlreadyExists, err)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrForeignKey, err)
		}
		if sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
			return fmt.Errorf("%s: %w: %w", op, storage.ErrConstraint, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
