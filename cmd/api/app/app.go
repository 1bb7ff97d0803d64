package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"user-rest-service/cmd/api/di"
	"user-rest-service/cmd/api/server"
	"user-rest-service/internal/config"
	"user-rest-service/pkg/logger"
	"user-rest-service/pkg/tracing"

	"go.uber.org/zap"
)

// App represents the application
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Server    *server.Server
	Container *di.Container

	shutdownTracing tracing.ShutdownFunc
}

// New loads configuration and builds every dependency of the service.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.NewWithConfig(logger.Config{
		Level:          cfg.Logger.Level,
		Format:         cfg.Logger.Format,
		OutputPath:     cfg.Logger.OutputPath,
		EnableSampling: cfg.Logger.EnableSampling,
		ServiceName:    cfg.Logger.ServiceName,
		ServiceVersion: cfg.Logger.ServiceVersion,
		Environment:    cfg.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Logger.ServiceName,
		ServiceVersion: cfg.Logger.ServiceVersion,
		Environment:    cfg.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	container, err := di.NewContainer(ctx, cfg, l)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          l,
		Server:          server.New(cfg, l, container),
		Container:       container,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves until ctx is cancelled, then releases every resource.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("starting application",
		zap.String("service", a.Config.Logger.ServiceName),
		zap.String("version", a.Config.Logger.ServiceVersion),
		zap.String("environment", a.Config.Env),
		zap.String("db_driver", a.Config.DB.Driver),
	)

	runErr := a.Server.Run(ctx)
	if runErr != nil {
		a.Logger.Error("server stopped with error", zap.Error(runErr))
	}

	return errors.Join(runErr, a.close())
}

// close releases container resources, flushes spans and syncs the logger.
func (a *App) close() error {
	var errs []error

	if err := a.Container.Close(); err != nil {
		a.Logger.Error("failed to close container", zap.Error(err))
		errs = append(errs, fmt.Errorf("container close: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownBudget(a.Config))
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.Logger.Error("failed to flush traces", zap.Error(err))
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}

	a.Logger.Info("application shutdown complete")

	// Syncing a terminal returns EINVAL.
	if err := a.Logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		errs = append(errs, fmt.Errorf("logger sync: %w", err))
	}

	return errors.Join(errs...)
}

// getConfigPath returns the configuration path
func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "."
}

func shutdownBudget(cfg *config.Config) time.Duration {
	return time.Duration(cfg.App.ShutdownTimeout) * time.Second
}
