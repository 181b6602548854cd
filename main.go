package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/pdf-annotator/handlers"
	"github.com/gogotex/pdf-annotator/internal/config"
	"github.com/gogotex/pdf-annotator/internal/docclient"
	"github.com/gogotex/pdf-annotator/internal/oidc"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/internal/session"
	"github.com/gogotex/pdf-annotator/internal/tokens"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
	"github.com/gogotex/pdf-annotator/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: docservice=%s keycloak=%v redis=%v", cfg.DocService.URL, cfg.Keycloak.Issuer() != "", cfg.Redis.Addr() != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	// Redis holds preview bytes and rate-limit windows when configured.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s), using in-memory previews: %v", addr, err)
			_ = client.Close()
		} else {
			rdb = client
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis: %s", addr)
		}
	}

	var store resource.Store
	if rdb != nil {
		store = resource.NewRedisStore(rdb, "preview:", cfg.Editor.PreviewTTL)
	} else {
		store = resource.NewMemoryStore()
	}

	if cfg.RateLimit.RPS > 0 {
		if rdb != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	opts := []docclient.Option{docclient.WithHTTPClient(&http.Client{Timeout: cfg.DocService.Timeout})}
	if cfg.ServiceToken.Secret != "" {
		ts, err := tokens.NewService(cfg.ServiceToken.Secret, cfg.ServiceToken.Issuer, cfg.ServiceToken.TTL)
		if err != nil {
			logger.Fatalf("service tokens: %v", err)
		}
		opts = append(opts, docclient.WithTokenSource(ts.TokenSource("pdf-annotator")))
	}
	docs := docclient.New(cfg.DocService.URL, opts...)

	reg := session.NewRegistry(docs, store, session.Options{DisplayWidth: cfg.Editor.DisplayWidth}, cfg.Editor.SessionIdleTTL)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		reg.Run(ctx, cfg.Editor.SweepInterval)
	}()

	var verifier middleware.Verifier
	if issuer := cfg.Keycloak.Issuer(); issuer != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.Keycloak.InsecureTokens {
		logger.Warnf("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{"oidc": true, "redis": true}
		if cfg.Keycloak.Issuer() != "" && verifier == nil {
			deps["oidc"] = false
			ready = false
		}
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				deps["redis"] = false
				ready = false
			}
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "sessions": reg.Len(), "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	if verifier != nil {
		api.Use(middleware.AuthMiddleware(verifier))
	} else {
		logger.Warnf("OIDC not configured: editing sessions are not scoped to users")
	}
	handlers.NewSessionHandler(reg, store, cfg.Editor.MaxUploadBytes).Register(api)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting annotation API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	<-sweepDone
}
