package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dormtrack/internal/attendance"
	"dormtrack/internal/auth"
	"dormtrack/internal/config"
	"dormtrack/internal/handler"
	"dormtrack/internal/httpmiddleware"
	"dormtrack/internal/roster"
	"dormtrack/internal/store"
	"dormtrack/internal/users"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(ctx, db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	userRepo := users.NewPostgresRepository(db.Client)
	rosterRepo := roster.NewPostgresRepository(db.Client)
	attRepo := attendance.NewPostgresRepository(db.Client)

	userSvc := users.NewService(userRepo, cfg.BcryptCost)
	if err := userSvc.Bootstrap(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		return err
	}

	authSvc := auth.NewService(userRepo, rosterRepo, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	rosterSvc := roster.NewService(rosterRepo)
	attSvc := attendance.NewService(attRepo, rosterRepo, redisClient, cfg.StatsCacheTTL)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	h := handler.New(authSvc, userSvc, rosterSvc, attSvc, cfg.JWTSigningKey, cfg.JWTIssuer)
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
