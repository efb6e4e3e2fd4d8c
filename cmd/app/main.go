package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/bootstrap"
	"github.com/Domenick1991/fieldbooking/internal/logging"
	"github.com/Domenick1991/fieldbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	applied, err := repository.Migrate(ctx, pool)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	for _, name := range applied {
		log.WithField("migration", name).Info("applied migration")
	}

	app, err := bootstrap.Build(ctx, cfg, pool, log)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer app.Close()

	if err := bootstrap.Run(ctx, app); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
