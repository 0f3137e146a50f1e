package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/hugh/pipedesk/internal/database"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/hugh/pipedesk/pkg/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	databaseURLFlag = "database-url"
	envFlag         = "env"
	logLevelFlag    = "log-level"
)

var flags = map[string]cobraflags.Flag{
	databaseURLFlag: &cobraflags.StringFlag{
		Name:  databaseURLFlag,
		Value: "",
		Usage: "Postgres connection URL (defaults to the DB_* environment settings)",
	},
	envFlag: &cobraflags.StringFlag{
		Name:  envFlag,
		Value: "development",
		Usage: "Environment, controls log format",
	},
	logLevelFlag: &cobraflags.StringFlag{
		Name:  logLevelFlag,
		Value: "",
		Usage: "Log level: debug, info, warn or error",
	},
}

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back the pipedesk schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	subcommands := []*cobra.Command{
		{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(func(m *database.Migrator) error { return m.Up() })
			},
		},
		{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(func(m *database.Migrator) error { return m.Down() })
			},
		},
		{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *database.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	}
	for _, cmd := range subcommands {
		cobraflags.RegisterMap(cmd, flags)
		root.AddCommand(cmd)
	}

	if err := root.Execute(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func withMigrator(fn func(*database.Migrator) error) error {
	logger := util.NewLogger(flags[envFlag].GetString(), flags[logLevelFlag].GetString())

	url := flags[databaseURLFlag].GetString()
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrations target postgres, configured driver is %q", cfg.Database.Driver)
		}
		url = cfg.Database.URL()
	}

	m, err := database.NewMigratorFromURL(url, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}
