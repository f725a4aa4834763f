package config

import (
	"fmt"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/db"
	"github.com/spf13/viper"
)

// AppConfig carries everything outside the database connection.
type AppConfig struct {
	ListenAddr        string
	TokenSecret       string
	BadgerDir         string
	MemoryLimitBytes  int64
	RollbackThreshold float64
	BatchSize         int
	SessionTTL        time.Duration
	CacheTTL          time.Duration
	CacheCapacity     int
	IdempotencyTTL    time.Duration
	SweepInterval     time.Duration
	TemplateLink      string
}

// DefaultAppConfig returns the production defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ListenAddr:        ":8090",
		BadgerDir:         "data/badger",
		MemoryLimitBytes:  100 << 20,
		RollbackThreshold: 50,
		BatchSize:         100,
		SessionTTL:        30 * time.Minute,
		CacheTTL:          10 * time.Minute,
		CacheCapacity:     64,
		IdempotencyTTL:    24 * time.Hour,
		SweepInterval:     time.Minute,
		TemplateLink:      "/templates/payroll-upload.xlsx",
	}
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("HR")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}
	return v
}

// LoadAppConfig reads server and ingestion settings, falling back to
// defaults for anything unset. The token secret has no default: leaving
// it empty lets main fail loudly instead of signing with "".
func LoadAppConfig(configPath string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	v := newViper(configPath)

	v.BindEnv("server.listen")
	v.BindEnv("preview.token_secret")
	v.BindEnv("preview.session_ttl")
	v.BindEnv("preview.idempotency_ttl")
	v.BindEnv("preview.badger_dir")
	v.BindEnv("ingestion.memory_limit_bytes")
	v.BindEnv("ingestion.rollback_threshold")
	v.BindEnv("ingestion.batch_size")
	v.BindEnv("ingestion.cache_ttl")
	v.BindEnv("ingestion.cache_capacity")
	v.BindEnv("ingestion.template_link")

	if v.IsSet("server.listen") {
		cfg.ListenAddr = v.GetString("server.listen")
	}
	if v.IsSet("preview.token_secret") {
		cfg.TokenSecret = v.GetString("preview.token_secret")
	}
	if v.IsSet("preview.session_ttl") {
		cfg.SessionTTL = v.GetDuration("preview.session_ttl")
	}
	if v.IsSet("preview.idempotency_ttl") {
		cfg.IdempotencyTTL = v.GetDuration("preview.idempotency_ttl")
	}
	if v.IsSet("preview.badger_dir") {
		cfg.BadgerDir = v.GetString("preview.badger_dir")
	}
	if v.IsSet("preview.sweep_interval") {
		cfg.SweepInterval = v.GetDuration("preview.sweep_interval")
	}
	if v.IsSet("ingestion.memory_limit_bytes") {
		cfg.MemoryLimitBytes = v.GetInt64("ingestion.memory_limit_bytes")
	}
	if v.IsSet("ingestion.rollback_threshold") {
		cfg.RollbackThreshold = v.GetFloat64("ingestion.rollback_threshold")
	}
	if v.IsSet("ingestion.batch_size") {
		cfg.BatchSize = v.GetInt("ingestion.batch_size")
	}
	if v.IsSet("ingestion.cache_ttl") {
		cfg.CacheTTL = v.GetDuration("ingestion.cache_ttl")
	}
	if v.IsSet("ingestion.cache_capacity") {
		cfg.CacheCapacity = v.GetInt("ingestion.cache_capacity")
	}
	if v.IsSet("ingestion.template_link") {
		cfg.TemplateLink = v.GetString("ingestion.template_link")
	}

	if cfg.TokenSecret == "" {
		return cfg, fmt.Errorf("preview.token_secret (or HR_PREVIEW_TOKEN_SECRET) is required")
	}
	return cfg, nil
}

func LoadDBConfig(configPath string) (db.Config, error) {
	// Start with default
	cfg := db.DefaultConfig()
	v := newViper(configPath)

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
