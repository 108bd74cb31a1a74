package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const migrationTable = "schema_migrations"

const tracerName = "github.com/ecomarket/localstore/internal/platform/storage/sqlitemigrate"

var (
	// ErrMigrationFailed wraps every failure while applying one migration.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrAppliedGap reports recorded versions that are not a prefix of 1..n.
	ErrAppliedGap = errors.New("applied migrations are not contiguous")
	// ErrSchemaAhead reports a store migrated past the registry's latest version.
	ErrSchemaAhead = errors.New("store schema is newer than the migration registry")
)

// State is the runner's position in the migration state machine.
type State int

const (
	StateUninitialized State = iota
	StateChecking
	StateApplying
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateApplying:
		return "applying"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Progress reports the runner state and, while applying or failed, the
// version being worked on.
type Progress struct {
	State   State
	Version int
}

// Result summarizes one Apply call.
type Result struct {
	// From is the version recorded before Apply ran.
	From int
	// To is the version recorded when Apply returned.
	To      int
	Applied []int
}

// MigrationError identifies the migration and step that failed.
type MigrationError struct {
	Version int
	Name    string
	Step    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("%s migration %04d_%s: %v", e.Step, e.Version, e.Name, e.Err)
}

// Unwrap exposes both ErrMigrationFailed and the underlying cause.
func (e *MigrationError) Unwrap() []error {
	return []error{ErrMigrationFailed, e.Err}
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for applied-migration diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the clock used for applied_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner applies a registry to a SQLite database, one transaction per version.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
	tracer   trace.Tracer

	// mu serializes Apply calls.
	mu sync.Mutex

	progressMu sync.RWMutex
	progress   Progress
}

// NewRunner creates a runner for registry.
func NewRunner(registry *Registry, opts ...Option) (*Runner, error) {
	if registry == nil || len(registry.migrations) == 0 {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidRegistry)
	}
	r := &Runner{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Progress returns the current state of the runner.
func (r *Runner) Progress() Progress {
	r.progressMu.RLock()
	defer r.progressMu.RUnlock()
	return r.progress
}

func (r *Runner) setProgress(state State, version int) {
	r.progressMu.Lock()
	r.progress = Progress{State: state, Version: version}
	r.progressMu.Unlock()
}

// Apply brings sqlDB up to the registry's latest version.
//
// Applied versions must already form the prefix 1..k of the registry. Pending
// versions run in ascending order and Apply stops at the first failure, leaving
// the store at the last fully applied version.
func (r *Runner) Apply(ctx context.Context, sqlDB *sql.DB) (Result, error) {
	if sqlDB == nil {
		return Result{}, fmt.Errorf("sql db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.setProgress(StateChecking, 0)
	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		r.setProgress(StateFailed, 0)
		return Result{}, err
	}

	applied, err := appliedVersions(ctx, sqlDB)
	if err != nil {
		r.setProgress(StateFailed, 0)
		return Result{}, err
	}
	current, err := r.verifyApplied(applied)
	if err != nil {
		r.setProgress(StateFailed, 0)
		return Result{From: len(applied), To: len(applied)}, err
	}

	result := Result{From: current, To: current}
	pending := r.registry.Pending(current)
	if len(pending) > 0 {
		r.logger.Info("applying migrations", "from", current, "to", r.registry.Latest())
	}
	for _, migration := range pending {
		r.setProgress(StateApplying, migration.Version)
		if err := r.applyOne(ctx, sqlDB, migration); err != nil {
			r.setProgress(StateFailed, migration.Version)
			r.logger.Error("migration failed", "version", migration.Version, "name", migration.Name, "error", err)
			return result, err
		}
		result.Applied = append(result.Applied, migration.Version)
		result.To = migration.Version
		r.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	r.setProgress(StateReady, result.To)
	return result, nil
}

func (r *Runner) verifyApplied(applied []int) (int, error) {
	for i, version := range applied {
		if version != i+1 {
			return 0, fmt.Errorf("%w: expected version %d, found %d", ErrAppliedGap, i+1, version)
		}
	}
	if latest := r.registry.Latest(); len(applied) > latest {
		return 0, fmt.Errorf("%w: store has version %d, registry ends at %d", ErrSchemaAhead, len(applied), latest)
	}
	return len(applied), nil
}

func (r *Runner) applyOne(ctx context.Context, sqlDB *sql.DB, migration Migration) (err error) {
	ctx, span := r.tracer.Start(ctx, "sqlitemigrate.apply",
		trace.WithAttributes(
			attribute.Int("migration.version", migration.Version),
			attribute.String("migration.name", migration.Name),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "migration failed")
		}
		span.End()
	}()

	fail := func(step string, cause error) error {
		return &MigrationError{Version: migration.Version, Name: migration.Name, Step: step, Err: cause}
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	if _, err := tx.ExecContext(ctx, migration.Script); err != nil {
		_ = tx.Rollback()
		return fail("exec", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		"INSERT INTO "+migrationTable+" (version, applied_at) VALUES (?, ?)",
		migration.Version,
		formatAppliedAt(r.now()),
	); err != nil {
		_ = tx.Rollback()
		return fail("record", err)
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}
