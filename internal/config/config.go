package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Database    DatabaseConfig
	MQTT        MQTTConfig
	Monitor     MonitorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// MQTTConfig holds broker connection settings
type MQTTConfig struct {
	Host     string
	Port     int
	ClientID string
}

// MonitorConfig holds threshold monitor settings
type MonitorConfig struct {
	SweepIntervalSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "kuryentrol-scheduler"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		MQTT: MQTTConfig{
			Host:     getEnv("MQTT_HOST", "localhost"),
			Port:     getEnvAsInt("MQTT_PORT", 1883),
			ClientID: getEnv("MQTT_CLIENT_ID", "scheduler-service"),
		},
		Monitor: MonitorConfig{
			SweepIntervalSeconds: getEnvAsInt("THRESHOLD_SWEEP_INTERVAL_SECONDS", 60),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
