// Package config loads runtime settings from the environment, after an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	HTTPAddr  string
	LogLevel  slog.Level
	LogFormat string // json|text

	StoreBackend string
	DatabaseURL  string
	BadgerDir    string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RequestTimeout time.Duration
	DevSeed        bool
}

// Load reads files (".env" when none are given) into the process environment
// without overriding variables that are already set, then builds a Config.
// A missing default .env is not an error; a missing named file is.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and validating values.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	c := &Config{
		HTTPAddr:       ":8080",
		LogLevel:       slog.LevelInfo,
		LogFormat:      "json",
		BadgerDir:      "./data",
		CacheBackend:   CacheMemory,
		RedisAddr:      "localhost:6379",
		CacheTTL:       10 * time.Minute,
		RequestTimeout: 15 * time.Second,
	}
	var errs []error

	if v := get("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		lvl, err := parseLevel(v)
		if err != nil {
			errs = append(errs, err)
		}
		c.LogLevel = lvl
	}
	switch v := strings.ToLower(get("LOG_FORMAT")); v {
	case "":
	case "json", "text":
		c.LogFormat = v
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unsupported value %q (want json or text)", v))
	}

	c.DatabaseURL = get("DATABASE_URL")
	switch v := strings.ToLower(get("STORE_BACKEND")); v {
	case "":
		c.StoreBackend = StoreMemory
		if c.DatabaseURL != "" {
			c.StoreBackend = StorePostgres
		}
	case StoreMemory, StoreBadger:
		c.StoreBackend = v
	case StorePostgres:
		c.StoreBackend = v
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unsupported value %q", v))
	}
	if v := get("BADGER_DIR"); v != "" {
		c.BadgerDir = v
	}

	switch v := strings.ToLower(get("CACHE_BACKEND")); v {
	case "":
	case CacheMemory, CacheRedis, CacheNone:
		c.CacheBackend = v
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unsupported value %q", v))
	}
	if v := get("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	c.RedisPassword = getenv("REDIS_PASSWORD")
	if v := get("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("REDIS_DB: want a non-negative integer, got %q", v))
		}
		c.RedisDB = n
	}
	if v := get("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("CACHE_TTL: want a non-negative duration, got %q", v))
		}
		c.CacheTTL = d
	}
	if v := get("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: want a positive duration, got %q", v))
		}
		c.RequestTimeout = d
	}
	switch v := strings.ToLower(get("DEV_SEED")); v {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		c.DevSeed = true
	default:
		errs = append(errs, fmt.Errorf("DEV_SEED: unsupported value %q", v))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Logger builds the process logger (slog to stdout).
func (c *Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// parseLevel maps env values to slog levels.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: unsupported value %q", s)
}
