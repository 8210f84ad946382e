package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/opdcare/opd/internal/config"
	"github.com/opdcare/opd/internal/domain/pharmacy"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/cache"
	"github.com/opdcare/opd/internal/platform/db"
	"github.com/opdcare/opd/internal/platform/metrics"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opd-server",
		Short: "Hospital OPD API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(inventoryCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the OPD API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func connect(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		AppName:  appName,
	})
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg, "opd-migrate")
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationsDir(dir, cfg)).WithSchema(schema)
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg, "opd-migrate")
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).WithSchema(schema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Migration status for schema: %s\n", schema)
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.MigrationsDir
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage pharmacy inventory",
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load inventory items for a hospital from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawHospital, _ := cmd.Flags().GetString("hospital")
			file, _ := cmd.Flags().GetString("file")

			hospitalID, err := uuid.Parse(rawHospital)
			if err != nil {
				return fmt.Errorf("invalid --hospital %q: %w", rawHospital, err)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := readSeedFile(f)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := connect(ctx, cfg, "opd-seed")
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := pharmacy.NewService(pharmacy.NewRepo(pool), cache.New(nil, logger), cfg.StatsCacheTTL, metrics.NewNop(), logger)
			added, skipped, err := seedInventory(ctx, svc, hospitalID, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d item(s), skipped %d existing batch(es).\n", added, skipped)
			return nil
		},
	}
	seedCmd.Flags().String("hospital", "", "Hospital the items belong to")
	seedCmd.Flags().String("file", "", "JSON array of inventory items")
	_ = seedCmd.MarkFlagRequired("hospital")
	_ = seedCmd.MarkFlagRequired("file")
	cmd.AddCommand(seedCmd)

	return cmd
}

// readSeedFile decodes and validates a JSON array of inventory items. A
// single invalid entry fails the whole file.
func readSeedFile(r io.Reader) ([]*pharmacy.CreateRequest, error) {
	var items []*pharmacy.CreateRequest
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("seed file contains no items")
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, item.ItemName, err)
		}
	}
	return items, nil
}

type inventoryAdder interface {
	AddItem(ctx context.Context, p auth.Principal, req *pharmacy.CreateRequest) (*pharmacy.Item, error)
}

// seedInventory adds items as a system operator scoped to hospitalID.
// Batches that already exist are skipped.
func seedInventory(ctx context.Context, svc inventoryAdder, hospitalID uuid.UUID, items []*pharmacy.CreateRequest) (added, skipped int, err error) {
	p := auth.Principal{
		UserID:     "system-seed",
		Roles:      []string{auth.RoleHospitalAdmin},
		HospitalID: hospitalID,
	}
	for _, req := range items {
		req.HospitalID = hospitalID
		if _, err := svc.AddItem(ctx, p, req); err != nil {
			if errors.Is(err, pharmacy.ErrDuplicateBatch) {
				skipped++
				continue
			}
			return added, skipped, fmt.Errorf("add %s (%s): %w", req.ItemName, req.BatchNumber, err)
		}
		added++
	}
	return added, skipped, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	pool, err := connect(ctx, cfg, "opd-server")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := cache.Connect(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, stats cache disabled")
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	e := newServer(cfg, pool, store, m, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
