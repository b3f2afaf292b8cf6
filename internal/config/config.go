package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	CoreDatabaseURL string
	RegistryPath    string
	HTTPListenAddr  string
	ServiceName     string
	LogLevel        string

	// CacheTTL is the in-memory cache freshness window for dashboard reads.
	CacheTTL time.Duration
	// SnapshotMaxAge is the staleness threshold for precomputed snapshots.
	SnapshotMaxAge time.Duration

	RefreshInterval    time.Duration
	RefreshConcurrency int

	// Optional snapshot export to S3-compatible storage. Enabled when
	// S3Bucket is set.
	S3Endpoint  string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		CoreDatabaseURL: getEnv("CORE_DATABASE_URL", ""),
		RegistryPath:    getEnv("TENANT_REGISTRY", "tenants.yaml"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8090"),
		ServiceName:     getEnv("SERVICE_NAME", "stats-api"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "snapshots"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
	}

	var err error
	if cfg.CacheTTL, err = getDurationEnv("CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SnapshotMaxAge, err = getDurationEnv("SNAPSHOT_MAX_AGE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getDurationEnv("REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshConcurrency, err = getIntEnv("REFRESH_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the fields required by the given component are set.
func (c *Config) Validate(component string) error {
	var missing []string

	switch component {
	case "stats-api", "refresh":
		if c.CoreDatabaseURL == "" {
			missing = append(missing, "CORE_DATABASE_URL")
		}
		if c.RegistryPath == "" {
			missing = append(missing, "TENANT_REGISTRY")
		}
	default:
		return fmt.Errorf("unknown component %q", component)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config for %s: %v", component, missing)
	}

	if c.RefreshConcurrency < 1 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be at least 1")
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("S3_BUCKET is set but S3_ACCESS_KEY/S3_SECRET_KEY are missing")
	}

	return nil
}

// S3Enabled reports whether snapshot export is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
