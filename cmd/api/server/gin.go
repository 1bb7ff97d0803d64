package server

import (
	"net/http"
	"time"

	ginhandler "user-rest-service/internal/adapter/gin/handler"
	ginrouter "user-rest-service/internal/adapter/gin/router"
	grpcmiddleware "user-rest-service/internal/adapter/grpc/middleware"

	"go.uber.org/zap"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.UserHandler,
	rateLimiter *grpcmiddleware.RateLimiter,
	health ginrouter.HealthChecker,
	opts ginrouter.Options,
	ginAddr string,
	l *zap.Logger,
) *http.Server {
	router := ginrouter.SetupRouter(handler, rateLimiter, health, opts, l)

	l.Info("Gin REST API configured",
		zap.String("address", ginAddr),
		zap.String("docs", "/swagger/index.html"),
	)

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
