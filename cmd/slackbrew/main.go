package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"slackbrew/internal/config"
	"slackbrew/internal/history"
	"slackbrew/internal/notify"
	"slackbrew/internal/publisher"
	"slackbrew/internal/scheduler"
	"slackbrew/internal/service"
	"slackbrew/internal/source/untappd"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	interval := flag.Duration("interval", 0, "run continuously at this interval instead of a single pass")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	logger = setupLogger(cfg.LogLevel)

	if cfg.Slack.WebhookURL == "" {
		fail(errors.New("no slack webhook configured, set slack.token or slack.webhook_url"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the Untappd activity source
	source := untappd.New(untappd.Config{
		BaseURL:      cfg.Untappd.BaseURL,
		ClientID:     cfg.Untappd.ClientID,
		ClientSecret: cfg.Untappd.ClientSecret,
		AccessToken:  cfg.Untappd.AccessToken,
		Timeout:      cfg.Untappd.Timeout.Std(),
	}, logger)

	// Initialize the Slack notifier
	notifier := notify.New(notify.Config{
		WebhookURL: cfg.Slack.WebhookURL,
		Timeout:    cfg.Untappd.Timeout.Std(),
	}, logger)

	// Optional delivery audit log
	var hist service.HistoryStore
	if cfg.History != nil {
		store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			fail(err)
		}
		defer store.Close()
		hist = store
		logger.Info("history store enabled", "driver", cfg.History.Driver)
	}

	// Optional AMQP notification mirror
	var mirror service.EventPublisher
	if cfg.AMQP != nil {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
			QueueName:  cfg.AMQP.QueueName,
		}, logger)
		if err != nil {
			fail(err)
		}
		defer rabbitMQ.Close()
		mirror = rabbitMQ
	}

	relay := service.NewRelay(
		source,
		notifier,
		cfg,
		hist,
		mirror,
		service.Options{
			Users:           cfg.Untappd.Users,
			DisplayMedia:    cfg.Untappd.DisplayMedia,
			DisplayBadges:   cfg.BadgesEnabled(),
			DisplayAppLinks: cfg.Untappd.DisplayAppLinks,
		},
		logger,
	)

	if *interval > 0 {
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		}()

		sched := scheduler.NewScheduler(relay, *interval, logger)
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			fail(err)
		}
		return
	}

	// Default mode: one pass per process, timed out well under any sane
	// external schedule tick.
	runCtx, runCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer runCancel()

	if _, err := relay.Run(runCtx); err != nil {
		fail(err)
	}
}

// fail is the only exit path for errors: a human-readable message on
// stderr and a non-zero code for the external scheduler to notice.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
