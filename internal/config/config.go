package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	DataFile    string

	AdminSessionTTL  time.Duration
	RolloverInterval time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from the environment. A .env file next to the
// binary is picked up when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dataFile := os.Getenv("DATA_FILE")
	if dataFile == "" {
		dataFile = "data/data.json"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		DataFile:           dataFile,
		AdminSessionTTL:    readDurationSeconds("ADMIN_SESSION_TTL_SECONDS", 12*60*60),
		RolloverInterval:   readDurationSeconds("ROLLOVER_SCAN_INTERVAL_SECONDS", 60),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
