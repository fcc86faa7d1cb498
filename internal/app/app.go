package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"slackpost/internal/config"
	apphttp "slackpost/internal/http"
	"slackpost/internal/http/handlers"
	"slackpost/internal/metrics"
	"slackpost/internal/slack"
)

type App struct {
	cfg     config.Config
	logger  *slog.Logger
	httpSrv *http.Server
}

func New(_ context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.App.Environment)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	slackClient, err := NewSlackClient(cfg.Slack, logger, m)
	if err != nil {
		return nil, fmt.Errorf("build slack client: %w", err)
	}

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.Slack.DryRun)
	slackHandler := handlers.NewSlackHandler(slackClient, cfg.Slack, cfg.Server.UploadMaxBytes, logger)

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		Logger:        logger,
		HealthHandler: healthHandler,
		SlackHandler:  slackHandler,
		Metrics:       m,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		httpSrv: httpSrv,
	}, nil
}

// NewSlackClient returns the real API client, or the noop client when dry
// run is enabled.
func NewSlackClient(cfg config.SlackConfig, logger *slog.Logger, recorder slack.Recorder) (slack.Client, error) {
	if cfg.DryRun {
		logger.Warn("slack dry run enabled; messages and images are logged, not sent")
		return slack.NewNoopClient(logger), nil
	}
	return slack.NewClient(cfg, logger, recorder)
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", slog.String("addr", a.httpSrv.Addr), slog.Bool("dry_run", a.cfg.Slack.DryRun))
		if err := a.httpSrv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return a.shutdown(context.Background())
		}
		_ = a.shutdown(context.Background())
		return err
	}
}

func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	a.logger.Info("http server stopped")
	return nil
}
