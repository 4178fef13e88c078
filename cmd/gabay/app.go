package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/gabay/internal/action"
	"github.com/hray3182/gabay/internal/ai"
	"github.com/hray3182/gabay/internal/api"
	"github.com/hray3182/gabay/internal/bot"
	"github.com/hray3182/gabay/internal/bot/handlers"
	"github.com/hray3182/gabay/internal/config"
	"github.com/hray3182/gabay/internal/dispatcher"
	"github.com/hray3182/gabay/internal/logging"
	"github.com/hray3182/gabay/internal/proactive"
	"github.com/hray3182/gabay/internal/reminder"
	"github.com/hray3182/gabay/internal/scheduler"
	"github.com/hray3182/gabay/internal/worker"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSendTimeout = 30 * time.Second
	updatesGrace       = 15 * time.Second
)

func loadConfig(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	var files []string
	if f := c.GlobalString("env-file"); f != "" {
		files = append(files, f)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

func migrateCmd(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("migrations applied")
	return nil
}

func tickCmd(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	deliverer, _, err := newDeliverer(cfg, log)
	if err != nil {
		return err
	}

	pool := newPool(cfg, log)
	pool.Start(ctx)
	poller := scheduler.NewPoller(st, newDispatcher(cfg, st, deliverer, log), pool, log)

	report, err := poller.Tick(ctx)
	// Drain whatever was claimed before exiting
	pool.Stop()
	if err != nil {
		return err
	}
	log.Info().
		Int("due", report.Due).
		Int("claimed", report.Claimed).
		Int("lost", report.Lost).
		Int("dropped", report.Dropped).
		Msg("tick finished")
	return nil
}

func runCmd(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	loc, err := cfg.DisplayLocation()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	deliverer, tg, err := newDeliverer(cfg, log)
	if err != nil {
		return err
	}

	pool := newPool(cfg, log)
	pool.Start(ctx)
	defer pool.Stop()

	poller := scheduler.NewPoller(st, newDispatcher(cfg, st, deliverer, log), pool, log,
		scheduler.WithInterval(cfg.PollInterval))
	service := reminder.NewService(st, poller, log)
	skill := reminder.NewSkill(service, loc)

	var triage, briefing scheduler.ProactiveRunner
	if cfg.TriageHookURL != "" {
		triage = proactive.NewHook(cfg.TriageHookURL, proactive.KindTriage, cfg.HookTimeout)
	}
	if cfg.BriefingHookURL != "" {
		briefing = proactive.NewHook(cfg.BriefingHookURL, proactive.KindBriefing, cfg.HookTimeout)
	}
	heartbeat := scheduler.NewHeartbeat(st, triage, briefing, pool, cfg.HeartbeatSpec, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return heartbeat.Start(gctx)
	})
	if cfg.HTTPAddr != "" {
		router := api.NewRouter(api.NewHandler(service, poller, log), cfg.APIToken)
		g.Go(func() error {
			return api.Serve(gctx, cfg.HTTPAddr, router, log)
		})
	}
	if tg != nil {
		var parser handlers.IntentParser
		if cfg.AIAPIKey != "" {
			parser = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
			log.Info().Str("model", cfg.AIModel).Msg("AI intent parsing enabled")
		} else {
			log.Info().Msg("AI client not configured, free-text reminders disabled")
		}
		b := bot.New(tg, handlers.New(tg, service, skill, st, st, parser, log), log)
		g.Go(func() error {
			if err := b.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	log.Info().Str("driver", cfg.StoreDriver).Msg("gabay running")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

func newPool(cfg *config.Config, log zerolog.Logger) *worker.Pool {
	return worker.New(worker.Config{
		Workers:   cfg.DispatchWorkers,
		QueueSize: cfg.DispatchQueue,
		Timeout:   cfg.DispatchTimeout,
	}, nil, log)
}

func newDispatcher(cfg *config.Config, st store, deliverer dispatcher.Deliverer, log zerolog.Logger) *dispatcher.Dispatcher {
	registry := action.NewRegistry()
	if cfg.EmailEnabled() {
		registry.Register(action.EmailTag, action.NewEmailHandler(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom))
	}
	log.Debug().Strs("actions", registry.Tags()).Msg("action handlers registered")
	return dispatcher.New(st, deliverer, registry, log)
}

// newDeliverer returns the Telegram sender when a token is configured and a
// log-only deliverer otherwise. The bot API is returned for the update loop.
// Sends go through their own client so a stalled request gives up within the
// dispatch timeout, while the update loop keeps a client that outlives long polls.
func newDeliverer(cfg *config.Config, log zerolog.Logger) (dispatcher.Deliverer, *tgbotapi.BotAPI, error) {
	if cfg.TelegramToken == "" {
		log.Warn().Msg("TELEGRAM_TOKEN not set, notifications will only be logged")
		return logDeliverer{log: log}, nil, nil
	}
	sendAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, sendClient(cfg.DispatchTimeout))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create telegram client")
	}
	updatesAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, updatesClient())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create telegram client")
	}
	return bot.NewSender(sendAPI, cfg.TelegramRatePerSec), updatesAPI, nil
}

func sendClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &http.Client{Timeout: timeout}
}

func updatesClient() *http.Client {
	return &http.Client{Timeout: bot.UpdateTimeout*time.Second + updatesGrace}
}

type logDeliverer struct {
	log zerolog.Logger
}

func (d logDeliverer) Deliver(_ context.Context, channelID, text string) error {
	d.log.Info().Str("channel", channelID).Str("text", text).Msg("notification")
	return nil
}
