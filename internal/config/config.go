// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/cmsadmin/model"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Access        AccessConfig        `yaml:"access"`
	Locales       model.Locales       `yaml:"locales"`
	Store         StoreConfig         `yaml:"store"`
	Seed          SeedConfig          `yaml:"seed"`
	Storage       StorageConfig       `yaml:"storage"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Forms         FormsConfig         `yaml:"forms"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes JWT and identity provider settings.
type IdentityConfig struct {
	Issuer       string            `yaml:"issuer"`
	Audience     string            `yaml:"audience"`
	JWKSURL      string            `yaml:"jwks_url"`
	JWKSCacheTTL time.Duration     `yaml:"jwks_cache_ttl"`
	Algorithms   []string          `yaml:"algorithms"`
	ClaimPaths   map[string]string `yaml:"claim_paths"`
}

// AccessConfig describes who may use the admin and what they may do.
type AccessConfig struct {
	DenyFilter          string        `yaml:"deny_filter"`
	AdminClaim          string        `yaml:"admin_claim"`
	AdminDomain         string        `yaml:"admin_domain"`
	DefaultCapabilities []string      `yaml:"default_capabilities"`
	StaticPolicyFile    string        `yaml:"static_policy_file"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

// StoreConfig describes where collection schemas are persisted.
type StoreConfig struct {
	Driver         string           `yaml:"driver"`
	DSNEnv         string           `yaml:"dsn_env"`
	MaxConns       int32            `yaml:"max_conns"`
	MigrateOnStart bool             `yaml:"migrate_on_start"`
	Cache          RedisCacheConfig `yaml:"cache"`
}

// RedisCacheConfig describes the read-through document cache.
type RedisCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	AddrEnv string        `yaml:"addr_env"`
	DB      int           `yaml:"db"`
	TTL     time.Duration `yaml:"ttl"`
}

// SeedConfig describes YAML collection documents loaded into the store.
type SeedConfig struct {
	Directories []string      `yaml:"directories"`
	Watch       bool          `yaml:"watch"`
	Overwrite   bool          `yaml:"overwrite"`
	Debounce    time.Duration `yaml:"debounce"`
}

// StorageConfig describes the file store behind storage-bound properties.
type StorageConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Root              string        `yaml:"root"`
	PublicURL         string        `yaml:"public_url"`
	SigningSecretEnv  string        `yaml:"signing_secret_env"`
	URLTTL            time.Duration `yaml:"url_ttl"`
	MaxUpload         int64         `yaml:"max_upload"`
	DeleteConcurrency int           `yaml:"delete_concurrency"`
}

// CatalogConfig describes the in-memory collection catalog.
type CatalogConfig struct {
	ViewTTL     time.Duration `yaml:"view_ttl"`
	Resubscribe time.Duration `yaml:"resubscribe"`
}

// FormsConfig describes server-side collection editor sessions.
type FormsConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			HandlerTimeout:  55 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language",
					"X-Correlation-Id", "X-Upload-Size"},
				MaxAge: 86400,
			},
		},
		Identity: IdentityConfig{
			JWKSCacheTTL: 1 * time.Hour,
			Algorithms:   []string{"RS256"},
			ClaimPaths: map[string]string{
				"subject_id": "sub",
				"email":      "email",
				"roles":      "roles",
			},
		},
		Access: AccessConfig{
			DenyFilter:  "flanders",
			AdminClaim:  "admin",
			AdminDomain: "@firecms.co",
			DefaultCapabilities: []string{
				model.CapCollectionsRead, model.CapCollectionsWrite,
				model.CapStorageRead, model.CapStorageWrite,
			},
			CacheTTL: 5 * time.Minute,
		},
		Locales: model.DefaultLocales(),
		Store: StoreConfig{
			Driver:   "memory",
			DSNEnv:   "CMS_DATABASE_URL",
			MaxConns: 10,
			Cache: RedisCacheConfig{
				AddrEnv: "CMS_REDIS_ADDR",
				TTL:     10 * time.Minute,
			},
		},
		Seed: SeedConfig{
			Debounce: 500 * time.Millisecond,
		},
		Storage: StorageConfig{
			Root:              "./data/storage",
			SigningSecretEnv:  "CMS_STORAGE_SIGNING_SECRET",
			URLTTL:            15 * time.Minute,
			MaxUpload:         50 * model.BytesInMB,
			DeleteConcurrency: 8,
		},
		Catalog: CatalogConfig{
			ViewTTL:     10 * time.Minute,
			Resubscribe: 5 * time.Second,
		},
		Forms: FormsConfig{
			SessionTTL: 30 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Identity.Issuer == "" {
		errs = append(errs, "identity.issuer is required")
	}
	if c.Identity.JWKSURL == "" {
		errs = append(errs, "identity.jwks_url is required")
	}
	if c.Identity.Audience == "" {
		errs = append(errs, "identity.audience is required")
	}

	if len(c.Locales) == 0 {
		errs = append(errs, "locales must list at least one locale")
	}
	seen := make(map[string]bool, len(c.Locales))
	for i, loc := range c.Locales {
		switch {
		case loc.Code == "":
			errs = append(errs, fmt.Sprintf("locales[%d].code is required", i))
		case seen[loc.Code]:
			errs = append(errs, fmt.Sprintf("locales[%d].code %q is duplicated", i, loc.Code))
		}
		seen[loc.Code] = true
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSNEnv == "" {
			errs = append(errs, "store.dsn_env is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (memory, postgres)", c.Store.Driver))
	}
	if c.Store.Cache.Enabled && c.Store.Cache.AddrEnv == "" {
		errs = append(errs, "store.cache.addr_env is required when the cache is enabled")
	}

	if c.Storage.Enabled {
		if c.Storage.Root == "" {
			errs = append(errs, "storage.root is required when storage is enabled")
		}
		if c.Storage.SigningSecretEnv == "" {
			errs = append(errs, "storage.signing_secret_env is required when storage is enabled")
		}
		if c.Storage.MaxUpload < 0 {
			errs = append(errs, "storage.max_upload must not be negative")
		}
	}

	switch c.Observability.Tracing.Exporter {
	case "", "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q is not supported (otlp, stdout)", c.Observability.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads CMS_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CMS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CMS_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("CMS_IDENTITY_JWKS_URL"); v != "" {
		cfg.Identity.JWKSURL = v
	}
	if v := os.Getenv("CMS_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("CMS_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("CMS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CMS_STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("CMS_SEED_DIRECTORIES"); v != "" {
		cfg.Seed.Directories = strings.Split(v, string(os.PathListSeparator))
	}
}

// Env returns the value of the environment variable named by key, or "" when
// key is empty.
func Env(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
