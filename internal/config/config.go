package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	Ingest   IngestConfig  `json:"ingest" yaml:"ingest"`
	API      APIConfig     `json:"api" yaml:"api"`
	Backend  BackendConfig `json:"backend" yaml:"backend"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Auth     AuthConfig    `json:"auth" yaml:"auth"`
	Sync     SyncConfig    `json:"sync" yaml:"sync"`
}

type IngestConfig struct {
	REST  RESTConfig  `json:"rest" yaml:"rest"`
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type BackendConfig struct {
	URL     string        `json:"url" yaml:"url"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type AuthConfig struct {
	CacheTTL  time.Duration   `json:"cache_ttl" yaml:"cache_ttl"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Bootstrap BootstrapDevice `json:"bootstrap_device" yaml:"bootstrap_device"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// BootstrapDevice is registered on startup if absent, so a freshly
// provisioned edge unit can authenticate before fleet provisioning runs.
type BootstrapDevice struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	DeviceID  string `json:"device_id" yaml:"device_id"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	VehicleID int64  `json:"vehicle_id" yaml:"vehicle_id"`
	DriverID  int64  `json:"driver_id" yaml:"driver_id"`
}

type SyncConfig struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	BatchLimit  int           `json:"batch_limit" yaml:"batch_limit"`
	MaxAttempts uint          `json:"max_attempts" yaml:"max_attempts"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			REST:  RESTConfig{Enabled: true, Addr: ":5000"},
			Kafka: KafkaConfig{Enabled: false},
		},
		API: APIConfig{Enabled: true, Addr: ":5001"},
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file:safecar-edge.db?_pragma=busy_timeout(5000)",
		},
		Auth: AuthConfig{
			CacheTTL: 5 * time.Minute,
			Redis:    RedisConfig{Enabled: false, Addr: "localhost:6379"},
			Bootstrap: BootstrapDevice{
				Enabled:   false,
				VehicleID: 1,
				DriverID:  1,
			},
		},
		Sync: SyncConfig{
			Enabled:     true,
			Interval:    60 * time.Second,
			BatchLimit:  100,
			MaxAttempts: 3,
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Auth.CacheTTL <= 0 {
		cfg.Auth.CacheTTL = 5 * time.Minute
	}
	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = 60 * time.Second
	}
	if cfg.Sync.BatchLimit <= 0 {
		cfg.Sync.BatchLimit = 100
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 3
	}
}

func Validate(cfg *Config) error {
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
	if cfg.Auth.Redis.Enabled && cfg.Auth.Redis.Addr == "" {
		return errors.New("auth.redis.addr required when auth.redis.enabled is true")
	}
	if cfg.Auth.Bootstrap.Enabled {
		if cfg.Auth.Bootstrap.DeviceID == "" || cfg.Auth.Bootstrap.APIKey == "" {
			return errors.New("auth.bootstrap_device requires device_id and api_key")
		}
	}
	return nil
}
