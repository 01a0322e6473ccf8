package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort           string
	SQLiteDSN         string
	IdempotencyDBPath string
	CORSOrigins       []string

	GatewayTimeout time.Duration

	Gateway1BaseURL string
	Gateway1Email   string
	Gateway1Token   string

	Gateway2BaseURL    string
	Gateway2AuthToken  string
	Gateway2AuthSecret string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	return Config{
		AppPort:           getenv("APP_PORT", "8080"),
		SQLiteDSN:         getenv("SQLITE_DSN", "./app.db"),
		IdempotencyDBPath: getenv("IDEMPOTENCY_DB_PATH", "./idempotency.db"),
		CORSOrigins:       []string{getenv("CORS_ORIGIN", "http://localhost:5173")},

		GatewayTimeout: time.Duration(getInt64("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,

		Gateway1BaseURL: getenv("GATEWAY1_BASE_URL", "http://gateway1:3001"),
		Gateway1Email:   getenv("GATEWAY1_EMAIL", "dev@betalent.tech"),
		Gateway1Token:   getenv("GATEWAY1_TOKEN", "FEC9BB078BF338F464F96B48089EB498"),

		Gateway2BaseURL:    getenv("GATEWAY2_BASE_URL", "http://gateway2:3002"),
		Gateway2AuthToken:  getenv("GATEWAY2_AUTH_TOKEN", "tk_f2198cc671b5289fa856"),
		Gateway2AuthSecret: getenv("GATEWAY2_AUTH_SECRET", "3d15e8ed6131446ea7e3456728b1211f"),
	}
}
