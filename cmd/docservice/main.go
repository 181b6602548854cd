// Command docservice is the reference document-processing service the
// annotation API talks to: upload, preview, text injection, metadata and
// export over the /api/pdf routes.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/pdf-annotator/internal/config"
	"github.com/gogotex/pdf-annotator/internal/database"
	dshandler "github.com/gogotex/pdf-annotator/internal/docservice/handler"
	"github.com/gogotex/pdf-annotator/internal/docservice/repository"
	"github.com/gogotex/pdf-annotator/internal/docservice/service"
	"github.com/gogotex/pdf-annotator/internal/storage"
	"github.com/gogotex/pdf-annotator/internal/tokens"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
	"github.com/gogotex/pdf-annotator/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	port := os.Getenv("DOCSERVICE_PORT")
	if port == "" {
		port = "7200"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var blobs storage.Blobs = storage.NewMemoryStorage()
	if cfg.MinIO.Endpoint != "" {
		m, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			logger.Warnf("cannot use MinIO (%v), keeping uploads in memory", err)
		} else {
			blobs = m
			logger.Infof("uploads stored in MinIO bucket %s", cfg.MinIO.Bucket)
		}
	}

	var repo service.Repository = repository.NewMemoryRepo()
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using memory-backed records", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
			mrepo, err := repository.NewMongoRepo(ctx, col)
			if err != nil {
				logger.Fatalf("upload records: %v", err)
			}
			repo = mrepo
		}
	}
	svc := service.New(repo, blobs)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if cfg.RateLimit.RPS > 0 {
		if addr := cfg.Redis.Addr(); addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer func() { _ = rdb.Close() }()
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	metrics.RegisterDocServiceCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if cfg.ServiceToken.Secret != "" {
		ver, err := tokens.NewService(cfg.ServiceToken.Secret, cfg.ServiceToken.Issuer, cfg.ServiceToken.TTL)
		if err != nil {
			logger.Fatalf("service tokens: %v", err)
		}
		api.Use(middleware.AuthMiddleware(ver))
	}
	dshandler.RegisterRoutes(api, svc, cfg.Editor.MaxUploadBytes)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("document service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
