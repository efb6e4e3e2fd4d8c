package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/bootstrap"
	"github.com/Domenick1991/fieldbooking/internal/kafka"
	"github.com/Domenick1991/fieldbooking/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
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

	app, err := bootstrap.Build(ctx, cfg, pool, log)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer app.Close()

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, err := kafka.DecodeBookingEvent(msg)
				if err != nil {
					log.WithError(err).Warn("decode event")
					return nil
				}
				return app.Notifier.Handle(ctx, event)
			}); err != nil {
				log.WithError(err).Error("consumer stopped")
			}
		}()
	} else {
		log.Warn("kafka not configured, notifications disabled")
	}

	sweep := time.NewTicker(time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-sweep.C:
			report, err := app.Bookings.Reconcile(ctx)
			if err != nil {
				log.WithError(err).Warn("reconcile")
				continue
			}
			if report.Scanned > 0 {
				log.WithFields(logrus.Fields{
					"scanned":        report.Scanned,
					"events_deleted": report.EventsDeleted,
					"rows_deleted":   report.RowsDeleted,
					"failed":         report.Failed,
				}).Info("reconciled unconfirmed bookings")
			}
		case <-ctx.Done():
			log.Info("shutting down")
			return
		}
	}
}
