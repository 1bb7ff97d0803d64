package router

import (
	"context"
	"net/http"
	"time"

	"user-rest-service/api"
	"user-rest-service/internal/adapter/gin/handler"
	"user-rest-service/internal/adapter/gin/middleware"
	grpcmiddleware "user-rest-service/internal/adapter/grpc/middleware"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// OpenAPIPath is where the embedded OpenAPI document is served.
const OpenAPIPath = "/openapi/users.json"

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the storage behind the service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options controls environment dependent router behaviour.
type Options struct {
	ServiceName string
	Production  bool
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	userHandler *handler.UserHandler,
	rateLimiter *grpcmiddleware.RateLimiter,
	health HealthChecker,
	opts Options,
	log *zap.Logger,
) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing(opts.ServiceName))
	router.Use(middleware.Logger(log))
	router.Use(middleware.SecureHeaders(opts.Production))
	router.Use(middleware.RateLimiter(rateLimiter, log))

	router.GET("/health", healthHandler(health, opts.ServiceName, log))

	// API documentation
	router.GET(OpenAPIPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", api.UsersOpenAPI)
	})
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(OpenAPIPath))))

	users := router.Group("/users")
	{
		users.POST("", userHandler.CreateUser)
		users.GET("", userHandler.ListUsers)
		users.GET("/:id", userHandler.GetUser)
		users.PUT("/:id", userHandler.UpdateUser)
		users.DELETE("/:id", userHandler.DeleteUser)
	}

	return router
}

func healthHandler(health HealthChecker, service string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()

			if err := health.Ping(ctx); err != nil {
				log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": service,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	}
}
