package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/visabot-io/visabot/internal/api"
	"github.com/visabot-io/visabot/internal/artifacts"
	"github.com/visabot-io/visabot/internal/bot"
	"github.com/visabot-io/visabot/internal/browser"
	"github.com/visabot-io/visabot/internal/captcha"
	"github.com/visabot-io/visabot/internal/config"
	"github.com/visabot-io/visabot/internal/database"
	"github.com/visabot-io/visabot/internal/models"
	"github.com/visabot-io/visabot/internal/notify"
	"github.com/visabot-io/visabot/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "app.yml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.HTTPDebug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("service exited with error", "error", err)
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Init(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	solver := captcha.NewClient(cfg.SolverAPIKey, cfg.SolverBaseURL,
		cfg.SolverPollInterval, cfg.SolverMaxWait, log)
	notifier := notify.NewEmailNotifier(cfg, log)

	var uploader artifacts.Uploader
	if cfg.S3Upload {
		s3up, err := artifacts.NewS3Uploader(cfg)
		if err != nil {
			return err
		}
		uploader = s3up
	}

	sessions := browser.Factory(func(ctx context.Context) (browser.Driver, error) {
		return browser.NewSession(ctx, browser.Options{
			ProxyURL: cfg.ProxyURL,
			Headless: cfg.Headless,
		})
	})

	registry := scheduler.NewRegistry()

	runner := func(ctx context.Context, user *models.User) {
		shots := artifacts.NewRecorder(cfg.ScreenshotsDir, user.ID,
			cfg.EnableScreenshots, uploader, log)
		b := bot.New(user, bot.Config{
			SigninURL:          cfg.SigninURL,
			MaxCaptchaAttempts: cfg.MaxCaptchaAttempts,
			AutoSubmit:         cfg.AutoSubmit,
			Delays:             bot.DefaultDelays(),
		}, db, solver, notifier, sessions, shots, log)
		outcome := b.Run(ctx)
		log.Infow("automation run finished", "user_id", user.ID, "outcome", outcome)
	}

	sched := scheduler.New(db, registry, runner, scheduler.Options{
		CheckInterval: cfg.CheckInterval,
		RetryInterval: cfg.RetryInterval,
		MaxConcurrent: cfg.MaxConcurrentInstances,
		RunTimeout:    cfg.RunTimeout,
	}, log)
	go sched.Run(ctx)

	srv := api.New(cfg, db, registry, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()
	log.Infow("service started",
		"http_port", cfg.HTTPPort,
		"max_concurrent", cfg.MaxConcurrentInstances,
		"check_interval", cfg.CheckInterval)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
