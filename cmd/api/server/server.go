package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"user-rest-service/cmd/api/di"
	ginrouter "user-rest-service/internal/adapter/gin/router"
	"user-rest-service/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	GRPC   *grpc.Server
	Health *health.Server
	Gin    *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, c *di.Container) *Server {
	grpcServer, healthServer := SetupGRPC(l, c.RateLimiter)

	return &Server{
		Config: cfg,
		Logger: l,
		GRPC:   grpcServer,
		Health: healthServer,
		Gin: SetupGinServer(
			c.GinHandler,
			c.RateLimiter,
			c.DBRepo,
			ginrouter.Options{
				ServiceName: cfg.Logger.ServiceName,
				Production:  cfg.IsProduction(),
			},
			httpAddress(cfg),
			l,
		),
	}
}

// Run listens on the configured ports and serves until ctx is cancelled or
// one of the servers fails.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}

	grpcLis, err := lc.Listen(ctx, "tcp", grpcAddress(s.Config))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	httpLis, err := lc.Listen(ctx, "tcp", httpAddress(s.Config))
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("failed to listen for HTTP: %w", err)
	}

	return s.Serve(ctx, grpcLis, httpLis)
}

// Serve serves gRPC and HTTP on the given listeners. When ctx is cancelled,
// or either server stops with an error, both are shut down gracefully.
func (s *Server) Serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("HTTP server running", zap.String("address", httpLis.Addr().String()))
		if err := s.Gin.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

// shutdown marks the service NOT_SERVING, drains HTTP within the configured
// timeout and then stops gRPC.
func (s *Server) shutdown() error {
	timeout := time.Duration(s.Config.App.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.Logger.Info("starting graceful shutdown", zap.Duration("timeout", timeout))

	s.Health.Shutdown()

	var errs []error
	if err := s.Gin.Shutdown(ctx); err != nil {
		s.Logger.Error("failed to shutdown HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.Logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.GRPC.Stop()
	}

	return errors.Join(errs...)
}

func grpcAddress(cfg *config.Config) string {
	return ":" + cfg.App.GRPCPort
}

func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
