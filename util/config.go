package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string        `validate:"required,number"`
	AllowedOrigins  []string      `validate:"dive,required"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	RoomIdleTimeout time.Duration `validate:"gte=0"`
	SweepInterval   time.Duration `validate:"gt=0"`
	EventRate       float64       `validate:"gt=0"`
	EventBurst      int           `validate:"gt=0"`
}

// Defaults used when a key is missing from the environment.
const (
	DefaultPort            = "3001"
	DefaultLogLevel        = "info"
	DefaultRoomIdleTimeout = 30 * time.Minute
	DefaultSweepInterval   = time.Minute
	DefaultEventRate       = 20
	DefaultEventBurst      = 40
)

// LoadConfig reads the given env files (".env" when none are given) into
// the process environment and builds a validated Config from it.
// Missing env files are not an error.
func LoadConfig(envFiles ...string) (*Config, error) {
	godotenv.Load(envFiles...)

	config := &Config{
		Port:           getEnv("PORT", DefaultPort),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
	}

	var err error

	if config.RoomIdleTimeout, err = getDuration("ROOM_IDLE_TIMEOUT", DefaultRoomIdleTimeout); err != nil {
		return nil, err
	}

	if config.SweepInterval, err = getDuration("SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}

	if config.EventRate, err = getFloat("EVENT_RATE", DefaultEventRate); err != nil {
		return nil, err
	}

	if config.EventBurst, err = getInt("EVENT_BURST", DefaultEventBurst); err != nil {
		return nil, err
	}

	if err := Validate.Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
