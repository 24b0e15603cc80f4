package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv       = "dev"
	defaultPort         = "8080"
	defaultDatabaseURL  = "bookruang.db"
	defaultJWTSecret    = "change-me-jwt-secret"
	defaultJWTTTL       = "168h"
	defaultJWTIssuer    = "BookRuangApi"
	defaultJWTAudience  = "BookRuangApp"
	defaultRoomLockTTL  = "10s"
	defaultAutoMigrate  = "true"
	defaultCORSOrigins  = "http://localhost:3000,http://localhost:5173"
	minJWTSecretLength  = 32
	defaultShutdownWait = "10s"
)

type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	JWTSecret          string
	JWTTTL             time.Duration
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	RedisAddr          string
	RedisPassword      string
	RoomLockTTL        time.Duration
	AutoMigrate        bool
	ShutdownTimeout    time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = defaultAppEnv
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer))
	cfg.JWTAudience = strings.TrimSpace(getEnv("JWT_AUDIENCE", defaultJWTAudience))
	cfg.CORSAllowedOrigins = splitCSV(getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", defaultAutoMigrate)

	var err error
	cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL)
	if err != nil {
		return nil, err
	}

	cfg.RoomLockTTL, err = parseDurationEnv("ROOM_LOCK_TTL", defaultRoomLockTTL)
	if err != nil {
		return nil, err
	}

	cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownWait)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s port=%s redis=%t auto_migrate=%t", cfg.AppEnv, cfg.Port, cfg.RedisAddr != "", cfg.AutoMigrate)

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.RoomLockTTL <= 0 {
		return fmt.Errorf("ROOM_LOCK_TTL must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.JWTIssuer == "" || cfg.JWTAudience == "" {
		return fmt.Errorf("JWT_ISSUER and JWT_AUDIENCE must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if len(cfg.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("in prod/release JWT_SECRET must be at least %d characters", minJWTSecretLength)
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
