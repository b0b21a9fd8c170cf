package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ストレージドライバ名
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// minJWTKeyLength はHS256署名鍵の最小バイト長。
const minJWTKeyLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver     string
	DatabaseURL       string
	DBQueryTimeout    time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Token
	JWTKey      string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Password
	BcryptCost int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageDriver = getEnvString("STORAGE_DRIVER", StorageDriverPostgres)
	if cfg.StorageDriver != StorageDriverPostgres && cfg.StorageDriver != StorageDriverMemory {
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", cfg.StorageDriver)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StorageDriverPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTKey = os.Getenv("JWT_KEY")
	if cfg.JWTKey == "" {
		missing = append(missing, "JWT_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTKey) < minJWTKeyLength {
		return nil, fmt.Errorf("JWT_KEY must be at least %d bytes", minJWTKeyLength)
	}

	// Optional fields with defaults
	cfg.DBQueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "taskman")
	cfg.JWTAudience = getEnvString("JWT_AUDIENCE", "taskman-api")
	cfg.JWTTTL = getEnvDuration("JWT_TTL", 2*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
