package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/bootstrap"
	"github.com/noah-isme/campus-request-api/pkg/config"
	"github.com/noah-isme/campus-request-api/pkg/database"
	"github.com/noah-isme/campus-request-api/pkg/logger"
)

type rootOptions struct {
	format  outputFormat
	verbose bool
	// open wires the services a command runs against.
	open func(ctx context.Context) (*bootstrap.App, error)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{format: formatText}
	opts.open = opts.openApp
	return opts.command()
}

func (o *rootOptions) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Operate the campus request queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Var(&o.format, "format", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newMigrateCommand(o))
	cmd.AddCommand(newStatsCommand(o))
	cmd.AddCommand(newPickCommand(o))
	cmd.AddCommand(newExportCommand(o))
	return cmd
}

func (o *rootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.format, w: cmd.OutOrStdout()}
}

func (o *rootOptions) logger(cfg *config.Config) *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	l, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return zap.NewNop()
	}
	return l
}

// openApp wires the services without the notification workers; a one-shot
// command has nobody to deliver to.
func (o *rootOptions) openApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		return nil, fmt.Errorf("DB_DRIVER is %q; queuectl needs a persistent store", cfg.Database.Driver)
	}
	// Sessions are irrelevant here; skip Redis unless the stats cache wants it.
	cfg.Session.Store = config.DriverMemory
	cfg.Admin.Password = ""
	return bootstrap.New(ctx, cfg, o.logger(cfg), bootstrap.WithoutNotifications())
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(opts, cmd, func(dbCfg config.DatabaseConfig) error {
				db, err := database.Open(dbCfg)
				if err != nil {
					return err
				}
				defer db.Close()
				return database.MigrateUp(db)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(opts, cmd, func(dbCfg config.DatabaseConfig) error {
				db, err := database.Open(dbCfg)
				if err != nil {
					return err
				}
				defer db.Close()
				return database.MigrateDown(db, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func runMigration(opts *rootOptions, cmd *cobra.Command, apply func(config.DatabaseConfig) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	if err := apply(dbCfg); err != nil {
		return err
	}
	result := map[string]string{"driver": dbCfg.Driver, "migration": cmd.Name(), "status": "ok"}
	return opts.printer(cmd).print(result, result)
}
