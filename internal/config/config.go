package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GenerationConfig struct {
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	OpenAIKey       string        `yaml:"openai_key"`
	Model           string        `yaml:"model"`
	MaxAttempts     int           `yaml:"max_attempts"` // per-variant retry bound, transient errors only
	BackoffBase     time.Duration `yaml:"backoff_base"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent generation calls
	DefaultAnchor   string        `yaml:"default_anchor"`   // style anchor when the user configured none
}

type StorageConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"` // set for MinIO / custom endpoints
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	PublicBase   string `yaml:"public_base"` // base URL for plain asset links
}

type QuotaConfig struct {
	GrantAllowance int           `yaml:"grant_allowance"` // per-class monthly allowance for admin grants
	TierCacheTTL   time.Duration `yaml:"tier_cache_ttl"`
}

type WorkerConfig struct {
	Count             int           `yaml:"count"`
	StaleAfter        time.Duration `yaml:"stale_after"` // processing jobs older than this get failed
	ReaperInterval    time.Duration `yaml:"reaper_interval"`
	RegenerateLockTTL time.Duration `yaml:"regenerate_lock_ttl"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Quota      QuotaConfig      `yaml:"quota"`
	Worker     WorkerConfig     `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.5-flash-image"
	}
	if cfg.Generation.MaxAttempts <= 0 {
		cfg.Generation.MaxAttempts = 3
	}
	if cfg.Generation.BackoffBase <= 0 {
		cfg.Generation.BackoffBase = 500 * time.Millisecond
	}
	if cfg.Generation.ConcurrentLimit <= 0 {
		cfg.Generation.ConcurrentLimit = 8
	}
	if cfg.Generation.DefaultAnchor == "" {
		cfg.Generation.DefaultAnchor = "bold, high-contrast, click-worthy video cover"
	}
	if cfg.Quota.GrantAllowance <= 0 {
		cfg.Quota.GrantAllowance = 10
	}
	if cfg.Quota.TierCacheTTL <= 0 {
		cfg.Quota.TierCacheTTL = time.Hour
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.StaleAfter <= 0 {
		cfg.Worker.StaleAfter = 30 * time.Minute
	}
	if cfg.Worker.ReaperInterval <= 0 {
		cfg.Worker.ReaperInterval = 5 * time.Minute
	}
	if cfg.Worker.RegenerateLockTTL <= 0 {
		cfg.Worker.RegenerateLockTTL = 10 * time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	// Dev runs keyless on the noop storage, so the bucket is only
	// mandatory outside dev. Same shape as the AI provider chain.
	if cfg.Storage.Bucket == "" && !dev {
		return nil, errors.New("storage.bucket is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
