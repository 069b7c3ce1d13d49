package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

type AuthConfig struct {
	JWTSecret string
}

type CloudinaryConfig struct {
	URL    string // CLOUDINARY_URL, empty disables track image uploads
	Folder string
}

// RecordingConfig carries the client-side cadences. Tests shrink these.
type RecordingConfig struct {
	FlushInterval time.Duration // sync buffered samples to the server
	TimerInterval time.Duration // snapshot cadence for display sinks (Watch)
}

type Config struct {
	Repositories RepositoriesConfig
	Auth         AuthConfig
	Cloudinary   CloudinaryConfig
	Recording    RecordingConfig
	ServerPort   string
	MetricsPort  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "trailtrace"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getEnvIntOrDefault("POSTGRES_MAX_CONNS", 30)),
				MinConns: int32(getEnvIntOrDefault("POSTGRES_MIN_CONNS", 5)),
			},
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET_KEY", ""),
		},
		Cloudinary: CloudinaryConfig{
			URL:    getEnvOrDefault("CLOUDINARY_URL", ""),
			Folder: getEnvOrDefault("CLOUDINARY_FOLDER", "trailtrace/tracks"),
		},
		Recording:   DefaultRecordingConfig(),
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8080"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	return cfg, nil
}

// DefaultRecordingConfig matches the cadences the mobile client ships with.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		FlushInterval: 15 * time.Second,
		TimerInterval: time.Second,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
