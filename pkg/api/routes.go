package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"cluster-metrics-api/pkg/observability"
)

// RouterOptions toggles the optional parts of the router.
type RouterOptions struct {
	Logger         *zap.Logger
	MetricsEnabled bool
}

// SetupRouter configures the Gin router with all API routes.
func SetupRouter(handler *APIHandler, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))
	if opts.MetricsEnabled {
		router.Use(Metrics())
		router.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	router.GET("/health", handler.HealthHandler)
	router.GET("/ui", handler.DashboardHandler)

	router.GET("/", handler.ClusterHandler)
	router.GET("/node-usage", handler.NodeUsageHandler)
	router.GET("/node-usage/summary", handler.UsageSummaryHandler)

	return router
}

// WrapHandler adds CORS handling for the given origins and server-side
// tracing around h.
func WrapHandler(h http.Handler, allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})
	return otelhttp.NewHandler(c.Handler(h), "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
