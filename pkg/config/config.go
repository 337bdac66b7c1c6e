package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	HTTP struct {
		Port int
	}
	Auth struct {
		Secret        string
		TokenDuration time.Duration
	}
	Booking struct {
		// LockWait bounds how long an operation waits for a ride's section
		// before failing with a busy error.
		LockWait time.Duration

		// EffectPollInterval is how often the dispatcher drains the outbox.
		EffectPollInterval time.Duration

		// EffectBatchSize caps how many pending effects one drain picks up.
		EffectBatchSize int
	}
}

func LoadConfig(filename string) (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	if err := loadEnvFile(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.DB.User = getEnv("DB_USER", "carpool_user")
	cfg.DB.Password = getEnv("DB_PASS", "carpool_pass")
	cfg.DB.Database = getEnv("DB_NAME", "carpool_db")
	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	cfg.RabbitMQ.Port = getEnvAsInt("RABBITMQ_PORT", 5672)
	cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", "guest")
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASS", "guest")
	cfg.HTTP.Port = getEnvAsInt("HTTP_PORT", 3000)
	cfg.Auth.Secret = getEnv("AUTH_SECRET", "dev-secret")
	cfg.Auth.TokenDuration = getEnvAsDuration("AUTH_TOKEN_DURATION", time.Hour)
	cfg.Booking.LockWait = getEnvAsDuration("BOOKING_LOCK_WAIT", 3*time.Second)
	cfg.Booking.EffectPollInterval = getEnvAsDuration("BOOKING_EFFECT_POLL", 2*time.Second)
	cfg.Booking.EffectBatchSize = getEnvAsInt("BOOKING_EFFECT_BATCH", 50)

	return cfg, nil
}

func loadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("could not open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("could not set env var %s: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
