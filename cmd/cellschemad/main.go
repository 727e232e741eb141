// Package main provides the cellschemad server daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/celldav/cellschema"
	"github.com/celldav/cellschema/internal/observability"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cellschemad",
	Short: "cellschemad serves cell-scoped OData schema management",
	Long: `cellschemad hosts the schema management endpoint of a multi-tenant
cell-based OData service. Each cell/box/collection triple owns an isolated
schema of EntityTypes, ComplexTypes and Properties, plus the user data
records conforming to it.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: cellschemad.yaml in the working directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cellschemad v0.1.0")
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the schema service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.logLevel(),
		}))
		slog.SetDefault(logger)

		db, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		opts := []observability.Option{
			observability.WithServiceName("cellschemad"),
		}
		if cfg.serverTiming() {
			opts = append(opts, observability.WithServerTiming())
		}
		obs := observability.NewConfig(opts...)

		service, err := cellschema.NewServiceWithConfig(db, cellschema.ServiceConfig{
			MaxPropertiesPerEntityType: cfg.maxProperties(),
			Observability:              obs,
			Logger:                     logger,
		})
		if err != nil {
			return fmt.Errorf("initialize service: %w", err)
		}

		return service.ListenAndServe(cfg.listenAddr())
	},
}

// openDatabase opens the configured driver. TranslateError is required so
// duplicate-key violations surface as gorm.ErrDuplicatedKey across drivers.
func openDatabase(cfg *config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{TranslateError: true}

	switch cfg.driver() {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.dsn()), gormConfig)
	case "postgres":
		return gorm.Open(postgres.Open(cfg.dsn()), gormConfig)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.driver())
	}
}
