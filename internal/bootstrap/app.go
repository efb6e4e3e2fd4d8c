package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/availability"
	"github.com/Domenick1991/fieldbooking/internal/cache"
	"github.com/Domenick1991/fieldbooking/internal/calendar"
	"github.com/Domenick1991/fieldbooking/internal/email"
	"github.com/Domenick1991/fieldbooking/internal/hours"
	"github.com/Domenick1991/fieldbooking/internal/kafka"
	"github.com/Domenick1991/fieldbooking/internal/notify"
	"github.com/Domenick1991/fieldbooking/internal/repository"
	"github.com/Domenick1991/fieldbooking/internal/service/booking"
	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/Domenick1991/fieldbooking/internal/travel"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// App is the dependency graph shared by the server, the worker and bookctl.
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Bookings *booking.BookingService
	Engine   *availability.Engine
	Tokens   *token.Service
	Notifier *notify.Notifier
	Producer *kafka.Producer
	Cache    *cache.RedisCache

	closers []func() error
}

type buildOptions struct {
	gateway calendar.Gateway
	oracle  travel.Oracle
	mailer  notify.Mailer
}

type Option func(*buildOptions)

// WithGateway replaces the Google Calendar adapter.
func WithGateway(g calendar.Gateway) Option {
	return func(o *buildOptions) { o.gateway = g }
}

// WithOracle replaces the Distance Matrix oracle. The redis travel cache is
// still layered on top when redis is configured.
func WithOracle(oracle travel.Oracle) Option {
	return func(o *buildOptions) { o.oracle = oracle }
}

func WithMailer(m notify.Mailer) Option {
	return func(o *buildOptions) { o.mailer = m }
}

func Build(ctx context.Context, cfg *config.Config, db repository.DB, log logrus.FieldLogger, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	app := &App{Config: cfg, Log: log}

	gateway := bo.gateway
	if gateway == nil {
		ts, err := calendar.NewTokenSource(ctx, cfg.Calendar)
		if err != nil {
			return nil, fmt.Errorf("calendar auth: %w", err)
		}
		gw, err := calendar.NewGoogleGateway(ctx, cfg.Calendar.Timeout(), option.WithTokenSource(ts))
		if err != nil {
			return nil, err
		}
		gateway = gw
	}

	if cfg.Redis.Addr != "" {
		app.Cache = cache.NewRedisCache(cfg.Redis, cfg.Maps.CacheTTL())
		app.closers = append(app.closers, app.Cache.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := app.Cache.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("redis unreachable, travel cache and shared calendar lock will degrade")
		}
		cancel()
	}

	oracle, err := buildOracle(cfg, bo.oracle, log)
	if err != nil {
		return nil, err
	}
	if app.Cache != nil {
		oracle = travel.NewCachedOracle(oracle, app.Cache, log)
	}

	policy := hours.NewPolicy(hours.Parse(cfg.Business.Hours), cfg.Business.Location())
	app.Engine = availability.NewEngine(policy, gateway, oracle, availability.Settings{
		CalendarID:     cfg.Calendar.ID,
		HomeAddress:    cfg.Business.HomeAddress,
		MaxTravelMiles: cfg.Business.MaxTravelMiles,
		Step:           cfg.Business.SlotStep(),
	}, log)

	app.Tokens = token.NewService(cfg.OneTap.Secret, cfg.OneTap.TTL())

	serviceOpts := []booking.BookingServiceOption{
		booking.WithLogger(log),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		app.Producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		app.closers = append(app.closers, app.Producer.Close)
		serviceOpts = append(serviceOpts, booking.WithProducer(app.Producer))
	}
	if app.Cache != nil {
		serviceOpts = append(serviceOpts, booking.WithLocker(app.Cache))
	}

	app.Bookings = booking.NewBookingService(
		repository.NewBookingRepository(db, cfg.Database.Timeout()),
		gateway,
		app.Engine,
		app.Tokens,
		booking.Settings{
			CalendarID:        cfg.Calendar.ID,
			Brand:             cfg.Business.Name,
			Location:          cfg.Business.Location(),
			DefaultPkgMinutes: cfg.Business.DefaultPkgMinutes,
			CodePrefix:        cfg.Booking.CodePrefix,
			LockTTL:           time.Duration(cfg.Booking.LockTTLSeconds) * time.Second,
			LockWait:          time.Duration(cfg.Booking.LockWaitSeconds) * time.Second,
			StaleAfter:        time.Duration(cfg.Booking.RequestedStaleMinutes) * time.Minute,
			BookingTopic:      cfg.Kafka.BookingTopic,
		},
		serviceOpts...,
	)

	mailer := bo.mailer
	if mailer == nil {
		mailer = email.NewSender(cfg.Mail)
	}
	app.Notifier = notify.NewNotifier(mailer, app.Tokens, notify.Settings{
		Brand:           cfg.Business.Name,
		PublicBaseURL:   cfg.HTTP.PublicBaseURL,
		FrontendBaseURL: cfg.HTTP.FrontendBaseURL,
		FromName:        cfg.Mail.FromName,
		FromEmail:       cfg.Mail.FromEmail,
		AdminEmail:      cfg.Mail.AdminEmail,
		Location:        cfg.Business.Location(),
	}, log)

	return app, nil
}

func buildOracle(cfg *config.Config, override travel.Oracle, log logrus.FieldLogger) (travel.Oracle, error) {
	if override != nil {
		return override, nil
	}
	if cfg.Maps.APIKey == "" {
		log.Warn("maps api key not set, every travel leg uses the default drive buffer")
		return travel.StaticOracle{Leg: travel.Fallback(cfg.Business.DefaultDriveBuffer)}, nil
	}
	oracle, err := travel.NewMapsOracle(cfg.Maps.APIKey, cfg.Business.DefaultDriveBuffer, cfg.Maps.Timeout(), log)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return oracle, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
