// Package localstore parses local store flags and runs the selected mode.
package localstore

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	entrypoint "github.com/ecomarket/localstore/internal/platform/cmd"
	grpcprobe "github.com/ecomarket/localstore/internal/platform/grpc"
	server "github.com/ecomarket/localstore/internal/services/localstore/app"
	localsqlite "github.com/ecomarket/localstore/internal/services/localstore/storage/sqlite"
)

// Modes accepted by Run.
const (
	ModeMigrate = "migrate"
	ModeStatus  = "status"
	ModeServe   = "serve"
	ModeProbe   = "probe"
)

// Config holds local store command configuration.
type Config struct {
	DBPath         string        `env:"LOCALSTORE_DB_PATH" envDefault:"data/localstore.db"`
	Port           int           `env:"LOCALSTORE_PORT" envDefault:"8095"`
	Mode           string        `env:"LOCALSTORE_MODE" envDefault:"migrate"`
	StartupTimeout time.Duration `env:"LOCALSTORE_STARTUP_TIMEOUT" envDefault:"30s"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local SQLite store")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The local store health gRPC port (serve and probe modes)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "One of migrate, status, serve or probe")
	fs.DurationVar(&cfg.StartupTimeout, "startup-timeout", cfg.StartupTimeout, "Maximum time to open and migrate the store")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch cfg.Mode {
	case ModeMigrate, ModeStatus, ModeServe, ModeProbe:
	default:
		return Config{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return Config{}, fmt.Errorf("db path is required")
	}
	return cfg, nil
}

// Run executes the configured mode.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLocalStore, func(ctx context.Context) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", entrypoint.ServiceLocalStore)
		switch cfg.Mode {
		case ModeMigrate:
			return runMigrate(ctx, cfg, logger)
		case ModeStatus:
			return runStatus(ctx, cfg)
		case ModeServe:
			return server.Run(ctx, server.Config{
				Port:           cfg.Port,
				DBPath:         cfg.DBPath,
				StartupTimeout: cfg.StartupTimeout,
				Logger:         logger,
			})
		case ModeProbe:
			return runProbe(ctx, cfg)
		default:
			return fmt.Errorf("unknown mode %q", cfg.Mode)
		}
	})
}

func runMigrate(ctx context.Context, cfg Config, logger *slog.Logger) error {
	connector := localsqlite.NewConnector(cfg.DBPath,
		localsqlite.WithLogger(logger),
		localsqlite.WithStartupTimeout(cfg.StartupTimeout),
	)
	defer func() {
		if err := connector.Close(); err != nil {
			log.Printf("close local store: %v", err)
		}
	}()

	store, err := connector.Acquire(ctx)
	if err != nil {
		return err
	}
	records, err := store.MigrationRecords(ctx)
	if err != nil {
		return fmt.Errorf("read migration records: %w", err)
	}
	for _, record := range records {
		log.Printf("version %d applied at %s", record.Version, record.AppliedAt.Format(time.RFC3339))
	}
	if len(records) > 0 {
		log.Printf("local store at %s is at schema version %d", cfg.DBPath, records[len(records)-1].Version)
	}
	return nil
}

func runStatus(ctx context.Context, cfg Config) error {
	status, err := localsqlite.ReadStatus(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	if !status.Exists {
		log.Printf("no local store at %s; %d migrations pending", status.Path, len(status.Pending))
		return nil
	}
	for _, record := range status.Records {
		log.Printf("version %d applied at %s", record.Version, record.AppliedAt.Format(time.RFC3339))
	}
	for _, migration := range status.Pending {
		log.Printf("version %d (%s) pending", migration.Version, migration.Name)
	}
	log.Printf("schema version %d of %d", status.Version, status.Latest)
	return nil
}

// runProbe waits for a serve-mode process on cfg.Port to report the store
// ready, for use as a container readiness check.
func runProbe(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	return grpcprobe.Probe(ctx, addr, server.HealthService, log.Printf)
}
