package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mindcheck/internal/domain/auth"
	"github.com/yanqian/mindcheck/internal/infra/config"
	"github.com/yanqian/mindcheck/internal/infra/ratelimit"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
// A nil limiter disables rate limiting on the predict route.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, limiter ratelimit.Limiter, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	// Rate limiting keys on ClientIP, so forwarded headers count only from
	// configured proxies.
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, ignoring forwarded headers", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(logger),
		corsMiddleware(cfg.HTTP.CORS.AllowedOrigins),
		errorHandlingMiddleware(logger),
	)

	router.GET("/healthz", handler.Health)

	requireAuth := authMiddleware(authSvc)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.Refresh)
		authGroup.GET("/me", requireAuth, handler.Me)

		mental := api.Group("/mental-health", requireAuth)
		mental.POST("/predict", rateLimitMiddleware(limiter, logger), handler.Predict)
		mental.GET("/history/:userId", handler.History)
		mental.GET("/latest-history/:userId", handler.LatestHistory)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
