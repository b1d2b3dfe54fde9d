// Gateway service: authenticated outbound proxy and OAuth broker for
// lifeboard third-party integrations.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/lifeboard/lifeboard/internal/auth"
	"github.com/lifeboard/lifeboard/internal/common/config"
	"github.com/lifeboard/lifeboard/internal/common/logger"
	"github.com/lifeboard/lifeboard/internal/common/tracing"
	"github.com/lifeboard/lifeboard/internal/gateway"
	"github.com/lifeboard/lifeboard/internal/handoff"
	"github.com/lifeboard/lifeboard/internal/metrics"
	"github.com/lifeboard/lifeboard/internal/middleware"
	"github.com/lifeboard/lifeboard/internal/oauth"
	"github.com/lifeboard/lifeboard/internal/server"
)

const serviceName = "gateway-service"

func main() {
	log := logger.New()
	defer log.Sync()

	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	tracingShutdown, err := tracing.Init(ctx, serviceName, cfg.Environment, cfg.Tracing, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	var shutdownables []server.Shutdownable
	shutdownables = append(shutdownables,
		server.NewShutdownFunc("tracing", tracingShutdown))

	// Stores: redis-backed when a redis URL is configured, process-local
	// otherwise. The in-memory fallback is single-node: rate limits and
	// handoffs do not survive a restart and are not shared across replicas.
	var rateLimitStore gateway.RateLimitStore
	var handoffStore handoff.Store

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid redis URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		log.Info("Connected to redis", zap.String("addr", opts.Addr))

		rateLimitStore = gateway.NewRedisRateLimitStore(client)
		handoffStore = handoff.NewRedisStore(client, "oauth")
		shutdownables = append(shutdownables,
			server.NewShutdownFunc("redis", func(context.Context) error { return client.Close() }))
	} else {
		log.Warn("No redis URL configured, using in-memory stores")
		rateLimitStore = gateway.NewMemoryRateLimitStore()
		memStore := handoff.NewMemoryStore(time.Minute)
		handoffStore = memStore
		shutdownables = append(shutdownables,
			server.NewShutdownFunc("handoff-store", func(context.Context) error { return memStore.Close() }))
	}

	var limiter *gateway.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = gateway.NewRateLimiter(rateLimitStore, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, log)
	}

	allowlist := gateway.NewAllowlist(cfg.Proxy.AllowedHosts)
	if allowlist.IsOpen() {
		log.Warn("Proxy allowlist is empty, running in open mode")
	}

	proxy := gateway.NewProxy(gateway.ProxyOptions{
		Allowlist:    allowlist,
		Limiter:      limiter,
		Timeout:      cfg.Proxy.ForwardTimeout,
		RelayCookies: cfg.Proxy.RelayCookies,
		Logger:       log,
	})

	validator := auth.NewValidator(cfg.JWTSecret, log)
	requireUser := validator.RequireUser()

	registry := oauth.NewRegistry(cfg.Providers, http.DefaultClient, log)
	broker := oauth.NewBroker(oauth.BrokerOptions{
		Registry:     registry,
		Store:        handoffStore,
		FrontendURL:  cfg.FrontendURL,
		RedirectPath: cfg.OAuthRedirectPath,
		Logger:       log,
	})

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(logger.GinMiddleware(log))
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", metrics.Handler())

	proxyHandlers := []gin.HandlerFunc{proxy.Handle}
	if cfg.Proxy.RequireAuth {
		proxyHandlers = []gin.HandlerFunc{requireUser, proxy.Handle}
	} else {
		log.Warn("Proxy authentication disabled, anonymous mode")
	}
	router.Any("/agp", proxyHandlers...)

	broker.RegisterRoutes(router, requireUser)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Proxy.ForwardTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Gateway service listening",
			zap.Int("port", cfg.Port),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	server.New(server.Config{
		Server:        srv,
		Logger:        log,
		Shutdownables: shutdownables,
	}).Start()

	log.Info("Gateway service stopped")
}
