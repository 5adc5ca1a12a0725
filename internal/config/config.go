package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	NumRooms       int
	TurnDuration   time.Duration
	GracePeriod    time.Duration
	LogLevel       string
	LogJSON        bool
	DatabaseURL    string
	AllowedOrigins []string
	MsgRate        float64
	MsgBurst       int
}

func Default() Config {
	return Config{
		Port:         8080,
		NumRooms:     3,
		TurnDuration: 92 * time.Second,
		GracePeriod:  120 * time.Second,
		LogLevel:     "info",
		MsgRate:      10,
		MsgBurst:     20,
	}
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	var err error

	if cfg.Port, err = intVar("PORT", cfg.Port, 1, 65535); err != nil {
		return Config{}, err
	}
	if cfg.NumRooms, err = intVar("NUM_ROOMS", cfg.NumRooms, 1, 1000); err != nil {
		return Config{}, err
	}
	turn, err := intVar("TURN_SECONDS", int(cfg.TurnDuration/time.Second), 1, 3600)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnDuration = time.Duration(turn) * time.Second
	grace, err := intVar("GRACE_SECONDS", int(cfg.GracePeriod/time.Second), 1, 86400)
	if err != nil {
		return Config{}, err
	}
	cfg.GracePeriod = time.Duration(grace) * time.Second
	if cfg.MsgBurst, err = intVar("MSG_BURST", cfg.MsgBurst, 1, 10000); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("MSG_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return Config{}, fmt.Errorf("MSG_RATE: invalid value %q", v)
		}
		cfg.MsgRate = r
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	switch v := strings.ToLower(os.Getenv("LOG_FORMAT")); v {
	case "", "console":
	case "json":
		cfg.LogJSON = true
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT: unknown format %q", v)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func intVar(name string, def, lo, hi int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s: %d out of range [%d, %d]", name, n, lo, hi)
	}
	return n, nil
}
