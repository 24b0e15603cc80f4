package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"roombooking/internal/app"
	"roombooking/internal/config"
	"roombooking/internal/database"
	jwtsvc "roombooking/internal/pkg/jwt"
	"roombooking/internal/pkg/lock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
	}

	locker, closeLocker := buildLocker(cfg)
	defer closeLocker()

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer, cfg.JWTAudience)

	a := app.New(app.Deps{
		DB:          db,
		Tokens:      j,
		Locker:      locker,
		CORSOrigins: cfg.CORSAllowedOrigins,
		AccessLog:   true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("server_start env=%s addr=%s", cfg.AppEnv, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("server_shutdown timeout=%s", cfg.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server_shutdown_error err=%v", err)
	}
	a.Hub.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// buildLocker uses redis when REDIS_ADDR is set and falls back to in-process
// locks otherwise, so a single instance runs without redis.
func buildLocker(cfg *config.Config) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping failed addr=%s: %v", cfg.RedisAddr, err)
	}
	log.Printf("room_lock backend=redis addr=%s ttl=%s", cfg.RedisAddr, cfg.RoomLockTTL)

	return lock.NewRedisLocker(rdb, cfg.RoomLockTTL), func() { _ = rdb.Close() }
}
