package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration
type Config struct {
	NodeEnv  string
	HTTPPort string

	Device   DeviceConfig
	Server   ServerConfig
	Sync     SyncConfig
	Database DatabaseConfig
}

// DeviceConfig identifies this device to the ingestion service
type DeviceConfig struct {
	ID            string
	Secret        string // optional; enables JWT auth on the realtime socket
	Source        string // source tag carried in frame metadata (e.g. "wearos", "agent")
	PairingQRPath string // optional; write a pairing QR PNG here on startup
}

// ServerConfig holds ingestion service connection configuration
type ServerConfig struct {
	BaseURL            string // http(s) endpoint, rewritten to ws(s) for the socket
	RealtimePath       string // fixed realtime path, device id appended
	HeartbeatInterval  time.Duration
	LivenessInterval   time.Duration
	LivenessTimeout    time.Duration
	SettleDelay        time.Duration
	InitialBackoffBase time.Duration
	InitialBackoffCap  time.Duration
	ReconnectInterval  time.Duration // fixed interval once a connection has ever succeeded
}

// SyncConfig holds sync scheduling configuration
type SyncConfig struct {
	Categories    []string
	BatchSize     int
	PacingDelay   time.Duration
	SyncInterval  time.Duration
	RetentionDays int
	SweepInterval time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		return nil, fmt.Errorf("DEVICE_ID is required")
	}

	baseURL := os.Getenv("INGEST_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("INGEST_BASE_URL is required")
	}

	return &Config{
		NodeEnv:  getEnv("NODE_ENV", "development"),
		HTTPPort: getEnv("PORT", "3211"),
		Device: DeviceConfig{
			ID:            deviceID,
			Secret:        os.Getenv("DEVICE_SECRET"),
			Source:        getEnv("DEVICE_SOURCE", "agent"),
			PairingQRPath: os.Getenv("PAIRING_QR_PATH"),
		},
		Server: ServerConfig{
			BaseURL:            baseURL,
			RealtimePath:       getEnv("REALTIME_PATH", "/realtime"),
			HeartbeatInterval:  getDuration("HEARTBEAT_INTERVAL", time.Second),
			LivenessInterval:   getDuration("LIVENESS_CHECK_INTERVAL", 5*time.Second),
			LivenessTimeout:    getDuration("LIVENESS_TIMEOUT", 15*time.Second),
			SettleDelay:        getDuration("SETTLE_DELAY", 2*time.Second),
			InitialBackoffBase: getDuration("INITIAL_BACKOFF_BASE", 2*time.Second),
			InitialBackoffCap:  getDuration("INITIAL_BACKOFF_CAP", 60*time.Second),
			ReconnectInterval:  getDuration("RECONNECT_INTERVAL", 15*time.Minute),
		},
		Sync: SyncConfig{
			Categories:    getList("SYNC_CATEGORIES", []string{"heart_rate", "gps", "sleep_state", "power_event", "generic"}),
			BatchSize:     getInt("SYNC_BATCH_SIZE", 50),
			PacingDelay:   getDuration("SYNC_PACING_DELAY", 50*time.Millisecond),
			SyncInterval:  getDuration("SYNC_INTERVAL", 30*time.Second),
			RetentionDays: getInt("RETENTION_DAYS", 7),
			SweepInterval: getDuration("SWEEP_INTERVAL", time.Hour),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "telemetryd"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt gets an integer environment variable with default value
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDuration gets a duration environment variable with default value
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getList gets a comma-separated environment variable with default value
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
