package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Tracing starts a server span per request, continuing any trace carried in
// the incoming headers. It uses the global provider and propagator, which are
// no-ops unless tracing was set up before the router is built.
func Tracing(service string) gin.HandlerFunc {
	return otelgin.Middleware(service)
}
