package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort      string
	DynamoEndpoint  string
	DynamoTableName string
	AWSRegion       string
	JWTSecret       string
	JWTIssuer       string
	CORSAllowOrigin string
	LogLevel        slog.Level
	LogFile         string
	DevBypassAuth   bool

	LocalDBPath   string
	SyncDebounce  time.Duration
	ProbeURL      string
	ProbeInterval time.Duration
}

func LoadConfig() (Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := Config{
		ServerPort:      envOrDefault("SERVER_PORT", "8080"),
		DynamoEndpoint:  os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoTableName: envOrDefault("DYNAMODB_TABLE_NAME", "user-preferences"),
		AWSRegion:       envOrDefault("AWS_REGION", "us-east-1"),
		JWTSecret:       secret,
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		CORSAllowOrigin: envOrDefault("CORS_ALLOW_ORIGIN", "*"),
		LogLevel:        parseLogLevel(os.Getenv("LOG_LEVEL")),
		LogFile:         os.Getenv("LOG_FILE"),
		DevBypassAuth:   strings.EqualFold(os.Getenv("DEV_BYPASS_AUTH"), "true"),

		LocalDBPath:   envOrDefault("LOCAL_DB_PATH", "prefsync.db"),
		SyncDebounce:  envMillis("SYNC_DEBOUNCE_MS", 500*time.Millisecond),
		ProbeURL:      envOrDefault("PROBE_URL", "https://dynamodb.us-east-1.amazonaws.com"),
		ProbeInterval: envMillis("PROBE_INTERVAL_MS", 15*time.Second),
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
