package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config carries everything the binaries need to wire the pipeline, its
// stores, and the HTTP front-end. Values come from an optional YAML file
// (FLUXMAP_CONFIG) with environment variables taking precedence.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	DataDir   string `yaml:"data_dir"`
	UploadDir string `yaml:"upload_dir"`

	// LedgerBackend selects where processed content hashes live:
	// file | memory | postgres | redis.
	LedgerBackend string `yaml:"ledger_backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisURL      string `yaml:"redis_url"`

	// KafkaBrokers empty means run/alert events are disabled.
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`

	JWTSecret    string   `yaml:"jwt_secret"`
	APIKeyHashes []string `yaml:"api_key_hashes"`

	FetchURL      string        `yaml:"fetch_url"`
	FetchClientID string        `yaml:"fetch_client_id"`
	FetchInterval time.Duration `yaml:"-"`
	// RescanInterval zero disables the background rescan scheduler.
	RescanInterval time.Duration `yaml:"-"`

	AnomalyWindow int `yaml:"anomaly_window"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// fileConfig mirrors Config for YAML decoding; durations are strings so the
// file can say "15m" instead of nanosecond integers.
type fileConfig struct {
	Config         `yaml:",inline"`
	FetchInterval  string `yaml:"fetch_interval"`
	RescanInterval string `yaml:"rescan_interval"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:         ":8000",
		DataDir:          "./data",
		UploadDir:        "./uploads",
		LedgerBackend:    "file",
		KafkaTopicPrefix: "fluxmap",
		AnomalyWindow:    30,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load builds the configuration: defaults, then the optional YAML file named
// by FLUXMAP_CONFIG, then FLUXMAP_* environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("FLUXMAP_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fc := fileConfig{Config: *cfg}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	*cfg = fc.Config

	if fc.FetchInterval != "" {
		d, err := time.ParseDuration(fc.FetchInterval)
		if err != nil {
			return fmt.Errorf("fetch_interval: %w", err)
		}
		cfg.FetchInterval = d
	}
	if fc.RescanInterval != "" {
		d, err := time.ParseDuration(fc.RescanInterval)
		if err != nil {
			return fmt.Errorf("rescan_interval: %w", err)
		}
		cfg.RescanInterval = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTPAddr, "FLUXMAP_HTTP_ADDR")
	setString(&cfg.DataDir, "FLUXMAP_DATA_DIR")
	setString(&cfg.UploadDir, "FLUXMAP_UPLOAD_DIR")
	setString(&cfg.LedgerBackend, "FLUXMAP_LEDGER_BACKEND")
	setString(&cfg.PostgresDSN, "FLUXMAP_POSTGRES_DSN")
	setString(&cfg.RedisURL, "FLUXMAP_REDIS_URL")
	setString(&cfg.KafkaTopicPrefix, "FLUXMAP_KAFKA_TOPIC_PREFIX")
	setString(&cfg.JWTSecret, "FLUXMAP_JWT_SECRET")
	setString(&cfg.FetchURL, "FLUXMAP_FETCH_URL")
	setString(&cfg.FetchClientID, "FLUXMAP_FETCH_CLIENT_ID")
	setString(&cfg.LogLevel, "FLUXMAP_LOG_LEVEL")
	setString(&cfg.LogFormat, "FLUXMAP_LOG_FORMAT")
	setList(&cfg.KafkaBrokers, "FLUXMAP_KAFKA_BROKERS")
	setList(&cfg.APIKeyHashes, "FLUXMAP_API_KEY_HASHES")

	if err := setInt(&cfg.AnomalyWindow, "FLUXMAP_ANOMALY_WINDOW"); err != nil {
		return err
	}
	if err := setDuration(&cfg.FetchInterval, "FLUXMAP_FETCH_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.RescanInterval, "FLUXMAP_RESCAN_INTERVAL"); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.LedgerBackend {
	case "file", "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("ledger_backend postgres requires postgres_dsn")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("ledger_backend redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown ledger_backend %q", c.LedgerBackend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir must not be empty")
	}
	if c.AnomalyWindow < 1 {
		return fmt.Errorf("anomaly_window must be >= 1, got %d", c.AnomalyWindow)
	}
	if c.FetchInterval > 0 && c.FetchURL == "" {
		return fmt.Errorf("fetch_interval set but fetch_url is empty")
	}
	return nil
}

// AdminEnabled reports whether admin-only endpoints can authenticate anyone.
func (c Config) AdminEnabled() bool {
	return c.JWTSecret != "" || len(c.APIKeyHashes) > 0
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
