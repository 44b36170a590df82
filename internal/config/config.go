package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Google IDトークン検証
	GoogleClientID string

	// セッショントークン
	JWTSecretKey     string
	JWTAlgorithm     string
	JWTExpireMinutes int

	// シーディング
	ManifestURL          string
	ManifestFetchTimeout time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// MANIFEST_URLは任意で、空の場合はシーディングジョブがスキップされる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTAlgorithm = getEnvString("JWT_ALGORITHM", "HS256")
	cfg.JWTExpireMinutes = getEnvInt("JWT_EXPIRE_MINUTES", 240)
	cfg.ManifestURL = getEnvString("MANIFEST_URL", "")
	cfg.ManifestFetchTimeout = getEnvDuration("MANIFEST_FETCH_TIMEOUT", 15*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// JWTExpiry はセッショントークンの有効期間をtime.Durationで返す。
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
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
