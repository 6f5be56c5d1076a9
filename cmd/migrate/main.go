package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gogrid/adapters/excel"
	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/internal/config"
	"gogrid/internal/container"
	"gogrid/internal/migration"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := newMigrateCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMigrateCmd() *cobra.Command {
	var reset bool
	var importFile string
	var key string

	cmd := &cobra.Command{
		Use:   "gogrid-migrate",
		Short: "Migrate the grid schema and optionally import a grid",
		Long: `Create or upgrade the grids table in DATABASE_URL.

Example: gogrid-migrate --import sheet.xlsx --key budget`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return fmt.Errorf("DATABASE_URL is required: the in-memory store has no schema")
			}
			gridKey := cfg.Grid.DefaultKey
			if key != "" {
				if gridKey, err = core.ParseGridKey(key); err != nil {
					return err
				}
			}
			return run(cmd.Context(), cfg, reset, importFile, gridKey)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Drop the grids table before migrating")
	cmd.Flags().StringVar(&importFile, "import", "", "Grid file (.json, .csv or .xlsx) to store after migrating")
	cmd.Flags().StringVar(&key, "key", "", "Grid key to import into (defaults to GRID_KEY)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, reset bool, importFile string, key core.GridKey) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := internal.NewDefaultLogger()

	c, err := container.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	if err := c.InitStorage(ctx); err != nil {
		return err
	}

	runner := migration.NewRunner()
	if reset {
		log.Println("Resetting database - dropping grids table...")
		if err := runner.Reset(ctx, c.DB); err != nil {
			return err
		}
		if err := runner.Run(ctx, c.DB); err != nil {
			return err
		}
	}
	log.Printf("Schema at version %s", runner.Version())

	if importFile == "" {
		return nil
	}

	raw, err := excel.NewDataReader(importFile).ReadGrid(cfg.Grid.Rows)
	if err != nil {
		return err
	}
	stored, err := c.GridRepo.Save(ctx, key, raw, core.NewInstanceID())
	if err != nil {
		return err
	}
	log.Printf("Imported %s into %s (version %d)", importFile, stored.Key, stored.Version)
	return nil
}
