// Package config loads runtime configuration from an optional YAML
// file overlaid with APP_* environment variables. Environment values
// always win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Sync struct {
		Endpoint string
		Timeout  time.Duration
		Headers  map[string]string
	}

	Import struct {
		MaxBodyBytes int64
	}

	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
	}

	PrometheusEnabled bool
	TrustedProxies    []string
}

// fileConfig mirrors the YAML layout. Every field is optional.
type fileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	BaseURL    string `yaml:"base_url"`

	DB struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"db"`

	Sync struct {
		Endpoint       string            `yaml:"endpoint"`
		TimeoutSeconds int               `yaml:"timeout_seconds"`
		Headers        map[string]string `yaml:"headers"`
	} `yaml:"sync"`

	Import struct {
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
	} `yaml:"import"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	PrometheusEnabled *bool    `yaml:"prometheus_enabled"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
}

// Load builds the configuration. A missing database DSN is not an
// error: the server falls back to the in-memory store.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.ListenAddr = ":8080"
	cfg.BaseURL = "http://localhost:8080"
	cfg.Sync.Timeout = 10 * time.Second
	cfg.Import.MaxBodyBytes = 5 << 20
	cfg.RateLimit.RequestsPerSecond = 2
	cfg.RateLimit.Burst = 5

	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("rate limit requests per second must be positive (got %v)", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.RateLimit.Burst <= 0 {
		return nil, fmt.Errorf("rate limit burst must be positive (got %d)", cfg.RateLimit.Burst)
	}
	if cfg.Import.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("import max body bytes must be positive (got %d)", cfg.Import.MaxBodyBytes)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.DB.DSN != "" {
		cfg.DB.DSN = fc.DB.DSN
	} else if fc.DB.Host != "" && fc.DB.Name != "" && fc.DB.User != "" {
		port := fc.DB.Port
		if port == "" {
			port = "5432"
		}
		sslmode := fc.DB.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			fc.DB.User, fc.DB.Password, fc.DB.Host, port, fc.DB.Name, sslmode)
	}
	if fc.Sync.Endpoint != "" {
		cfg.Sync.Endpoint = fc.Sync.Endpoint
	}
	if fc.Sync.TimeoutSeconds > 0 {
		cfg.Sync.Timeout = time.Duration(fc.Sync.TimeoutSeconds) * time.Second
	}
	if len(fc.Sync.Headers) > 0 {
		cfg.Sync.Headers = fc.Sync.Headers
	}
	if fc.Import.MaxBodyBytes > 0 {
		cfg.Import.MaxBodyBytes = fc.Import.MaxBodyBytes
	}
	if fc.RateLimit.RequestsPerSecond > 0 {
		cfg.RateLimit.RequestsPerSecond = fc.RateLimit.RequestsPerSecond
	}
	if fc.RateLimit.Burst > 0 {
		cfg.RateLimit.Burst = fc.RateLimit.Burst
	}
	if fc.PrometheusEnabled != nil {
		cfg.PrometheusEnabled = *fc.PrometheusEnabled
	}
	if len(fc.TrustedProxies) > 0 {
		cfg.TrustedProxies = fc.TrustedProxies
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("APP_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	if v := os.Getenv("APP_SYNC_ENDPOINT"); v != "" {
		cfg.Sync.Endpoint = v
	}
	if v := os.Getenv("APP_SYNC_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Sync.Timeout = time.Duration(secs) * time.Second
		}
	}
	// APP_SYNC_AUTH_HEADER carries one "Name: value" pair, enough for a
	// bearer token or basic credentials.
	if v := os.Getenv("APP_SYNC_AUTH_HEADER"); v != "" {
		if idx := strings.Index(v, ":"); idx > 0 {
			if cfg.Sync.Headers == nil {
				cfg.Sync.Headers = make(map[string]string)
			}
			cfg.Sync.Headers[strings.TrimSpace(v[:idx])] = strings.TrimSpace(v[idx+1:])
		}
	}
	if v := os.Getenv("APP_IMPORT_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Import.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("APP_PROMETHEUS_ENDPOINT_ENABLED"); v != "" {
		cfg.PrometheusEnabled = parseBool(v, cfg.PrometheusEnabled)
	}
	if list := getenvList("APP_TRUSTED_PROXIES"); len(list) > 0 {
		cfg.TrustedProxies = list
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
