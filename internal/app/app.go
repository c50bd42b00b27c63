package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"artist-momentum/internal/alerting"
	"artist-momentum/internal/config"
	"artist-momentum/internal/momentum"
	"artist-momentum/internal/scheduler"
	"artist-momentum/internal/service"
	"artist-momentum/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newEngine(snapshots storage.SnapshotStore, artists storage.ArtistStore) *momentum.Engine {
	return momentum.NewEngine(snapshots, artists, momentum.Config{
		WindowDays:          a.Config.Scoring.WindowDays,
		IncludeSelfInCohort: a.Config.Scoring.IncludeSelfInCohort,
		Workers:             a.Config.Scoring.Workers,
		Secondaries:         momentum.DefaultSecondaries(),
	}, a.Logger)
}

func (a *App) newChannels() []alerting.Notifier {
	channels := make([]alerting.Notifier, 0, 3)

	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		channels = append(channels, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if a.Config.Alerting.Email.Enabled {
		cfg := a.Config.Alerting.Email
		channels = append(channels, alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			To:       cfg.To,
		}, a.Logger))
	}
	if a.Config.Alerting.Webhook.Enabled {
		cfg := a.Config.Alerting.Webhook
		channels = append(channels, alerting.NewWebhookNotifier(cfg.URL, cfg.Timeout, a.Logger))
	}

	return channels
}

func (a *App) newEvaluator(store *storage.Store, engine *momentum.Engine) *alerting.Evaluator {
	return alerting.NewEvaluator(store, store, engine, a.newChannels(), a.Config.Scoring.WindowDays, a.Logger)
}

// Run executes the long-running alert sweep service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the sweep service needs the snapshot store")
	}
	defer closeStore()

	if !a.Config.Alerting.Enabled {
		a.Logger.Warn().Msg("alerting.enabled is false; sweeps will evaluate but no channels are configured")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	engine := a.newEngine(store, store)
	evaluator := a.newEvaluator(store, engine)
	svc := service.New(a.Config, sched, evaluator, store, a.Logger)

	a.Logger.Info().Msg("starting alert sweep service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert sweep service stopped")
	return nil
}

// LeaderboardOptions configure the leaderboard command.
type LeaderboardOptions struct {
	Genres     []string
	WindowDays int
	Limit      int
}

// MomentumOptions configure the single-artist momentum command.
type MomentumOptions struct {
	ArtistID   int64
	WindowDays int
}

// SweepOptions configure the one-shot batch sweep.
type SweepOptions struct {
	CoolDown time.Duration
}

// ContentAlertOptions configure the content-event fan-out command.
type ContentAlertOptions struct {
	ArtistID int64
	ActorID  int64
	Kind     string
	Summary  string
}

// ExportOptions hold parameters for exporting an artist's popularity history.
type ExportOptions struct {
	ArtistID  int64
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
