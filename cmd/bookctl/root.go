package main

import (
	"context"
	"os"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/bootstrap"
	"github.com/Domenick1991/fieldbooking/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bookctl",
		Short:         "Operate the field booking service: schema, bookings, reconciliation, tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultPath, "path to the yaml config")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newBookingCmd(opts))
	root.AddCommand(newReconcileCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newAvailabilityCmd(opts))
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.LoadConfig(o.configPath)
}

// openApp connects to postgres and builds the full dependency graph. The
// returned func releases both.
func (o *rootOptions) openApp(ctx context.Context) (*bootstrap.App, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.Log)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	app, err := bootstrap.Build(ctx, cfg, pool, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return app, func() {
		_ = app.Close()
		pool.Close()
	}, nil
}
