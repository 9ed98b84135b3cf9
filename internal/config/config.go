package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr     string
	DatabaseURL  string // empty disables the round archive
	LogLevel     string
	LogDev       bool
	DefaultTable string
	RoundFile    string

	// origin patterns for websocket upgrades and CORS
	AllowedOrigins []string
	Rules          engine.Rules
}

// roundFile is the optional YAML timing override, e.g.
//
//	countdown_seconds: 10
//	countdown_tick: 1s
//	flight_tick: 100ms
//	crash_pause: 1s
//	history_size: 10
type roundFile struct {
	CountdownSeconds *int    `yaml:"countdown_seconds"`
	CountdownTick    *string `yaml:"countdown_tick"`
	FlightTick       *string `yaml:"flight_tick"`
	CrashPause       *string `yaml:"crash_pause"`
	HistorySize      *int    `yaml:"history_size"`
}

// Load reads .env files (if present), the environment and the round file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DefaultTable: getEnv("DEFAULT_TABLE", "MAIN"),
		RoundFile:    getEnv("ROUND_CONFIG", "config.yaml"),
		Rules:        engine.DefaultRules(),
	}
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	if v := os.Getenv("LOG_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LOG_DEV: %w", err)
		}
		cfg.LogDev = dev
	}

	rules, err := LoadRules(cfg.RoundFile, cfg.Rules)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules
	return cfg, nil
}

// LoadRules overlays the YAML file at path onto base. A missing file is
// not an error.
func LoadRules(path string, base engine.Rules) (engine.Rules, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("read round config: %w", err)
	}
	return ParseRules(data, base)
}

func ParseRules(data []byte, base engine.Rules) (engine.Rules, error) {
	var f roundFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse round config: %w", err)
	}

	r := base
	if f.CountdownSeconds != nil {
		r.CountdownSeconds = *f.CountdownSeconds
	}
	if f.HistorySize != nil {
		r.HistorySize = *f.HistorySize
	}
	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"countdown_tick", f.CountdownTick, &r.CountdownTick},
		{"flight_tick", f.FlightTick, &r.FlightTick},
		{"crash_pause", f.CrashPause, &r.CrashPause},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return base, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	if err := Validate(r); err != nil {
		return base, err
	}
	return r, nil
}

func Validate(r engine.Rules) error {
	switch {
	case r.CountdownSeconds < 1:
		return fmt.Errorf("countdown_seconds must be at least 1, got %d", r.CountdownSeconds)
	case r.CountdownTick <= 0:
		return fmt.Errorf("countdown_tick must be positive, got %s", r.CountdownTick)
	case r.FlightTick <= 0:
		return fmt.Errorf("flight_tick must be positive, got %s", r.FlightTick)
	case r.CrashPause < 0:
		return fmt.Errorf("crash_pause must not be negative, got %s", r.CrashPause)
	case r.HistorySize < 1:
		return fmt.Errorf("history_size must be at least 1, got %d", r.HistorySize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
