package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/pdfebc/pdfebc-web/apis/v1"
	"github.com/pdfebc/pdfebc-web/internal/compression"
	"github.com/pdfebc/pdfebc-web/internal/engine/archivers"
	"github.com/pdfebc/pdfebc-web/internal/engine/sinks"
	"github.com/pdfebc/pdfebc-web/internal/queue"
)

const (
	DefaultName   = "pdfebc"
	DefaultListen = ":8080"

	BundleArchive = "archive"
	BundleFiles   = "files"

	cacheDirName = "pdfebc-web"
)

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// Settings is a ServerConfig with every default applied and every value parsed.
type Settings struct {
	Name        string
	CacheDir    string
	Listen      string
	Compressor  compression.GhostscriptConfig
	Compression archivers.CompressionType
	Queue       QueueSettings

	// Delivery is nil when the asynchronous workflow is disabled.
	Delivery *DeliverySettings
}

type QueueSettings struct {
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
	RedisURL     string
	RedisKey     string
}

type DeliverySettings struct {
	Bundle string
	Kind   string
	Spec   any
}

// DefaultConfig is used when no configuration file is given.
func DefaultConfig() v1.ServerConfig {
	return v1.ServerConfig{
		Kind:     v1.ServerConfigKind,
		Metadata: v1.Metadata{Name: DefaultName},
		Spec: v1.ServerConfigSpec{
			CacheDir: filepath.Join("${CACHE_DIR}", cacheDirName),
			Listen:   DefaultListen,
		},
	}
}

// ParseConfig parses a YAML or JSON configuration file and validates it.
func ParseConfig(data []byte) (v1.ServerConfig, error) {
	var cfg v1.ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return v1.ServerConfig{}, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	if err := defaultValidator.Struct(cfg); err != nil {
		return v1.ServerConfig{}, fmt.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

// LoadSettings parses data (DefaultConfig when empty), expands ${VAR} references with the
// built-in variables and the allowed environment variables, and resolves the result.
func LoadSettings(data []byte, allowedEnv []string) (Settings, error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		parsed, err := ParseConfig(data)
		if err != nil {
			return Settings{}, err
		}
		cfg = parsed
	}

	variables, err := BuildVariables(cfg, allowedEnv)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := ExpandTemplates(&cfg, variables); err != nil {
		return Settings{}, fmt.Errorf("failed to expand templates: %w", err)
	}

	return ResolveSettings(cfg)
}

// ResolveSettings applies defaults to an expanded configuration.
func ResolveSettings(cfg v1.ServerConfig) (Settings, error) {
	spec := cfg.Spec
	settings := Settings{
		Name:     cfg.Metadata.Name,
		CacheDir: spec.CacheDir,
		Listen:   spec.Listen,
		Queue: QueueSettings{
			Workers:      queue.DefaultWorkers,
			MaxAttempts:  queue.DefaultMaxAttempts,
			RetryBackoff: queue.DefaultRetryBackoff,
		},
	}

	if settings.Name == "" {
		settings.Name = DefaultName
	}
	if settings.Listen == "" {
		settings.Listen = DefaultListen
	}
	if settings.CacheDir == "" {
		cacheDir, err := userCacheDir()
		if err != nil {
			return Settings{}, err
		}
		settings.CacheDir = filepath.Join(cacheDir, cacheDirName)
	}

	if c := spec.Compressor; c != nil {
		settings.Compressor.Binary = c.Binary
		settings.Compressor.Level = c.Level
		if c.Timeout != "" {
			timeout, err := time.ParseDuration(c.Timeout)
			if err != nil {
				return Settings{}, fmt.Errorf("invalid compressor timeout %q: %w", c.Timeout, err)
			}
			if timeout <= 0 {
				return Settings{}, fmt.Errorf("invalid compressor timeout %q: must be positive", c.Timeout)
			}
			settings.Compressor.Timeout = timeout
		}
	}
	if settings.Compressor.Binary == "" {
		settings.Compressor.Binary = compression.DefaultBinary
	}
	if settings.Compressor.Level == "" {
		settings.Compressor.Level = compression.DefaultLevel
	}
	if settings.Compressor.Timeout == 0 {
		settings.Compressor.Timeout = compression.DefaultTimeout
	}

	var archiveCompression string
	if spec.Archive != nil {
		archiveCompression = spec.Archive.Compression
	}
	ct, err := archivers.ParseCompression(archiveCompression)
	if err != nil {
		return Settings{}, err
	}
	settings.Compression = ct

	if q := spec.Queue; q != nil {
		if q.Workers > 0 {
			settings.Queue.Workers = q.Workers
		}
		if q.MaxAttempts > 0 {
			settings.Queue.MaxAttempts = q.MaxAttempts
		}
		if q.RetryBackoff != "" {
			backoff, err := time.ParseDuration(q.RetryBackoff)
			if err != nil {
				return Settings{}, fmt.Errorf("invalid queue retry_backoff %q: %w", q.RetryBackoff, err)
			}
			if backoff <= 0 {
				return Settings{}, fmt.Errorf("invalid queue retry_backoff %q: must be positive", q.RetryBackoff)
			}
			settings.Queue.RetryBackoff = backoff
		}
		if q.Redis != nil {
			settings.Queue.RedisURL = q.Redis.URL
			settings.Queue.RedisKey = q.Redis.Key
		}
	}

	if spec.Delivery != nil {
		kind, sinkSpec, err := sinks.ResolveDeliverySpec(spec.Delivery)
		if err != nil {
			return Settings{}, err
		}
		bundle := spec.Delivery.Bundle
		if bundle == "" {
			bundle = BundleArchive
		}
		settings.Delivery = &DeliverySettings{Bundle: bundle, Kind: kind, Spec: sinkSpec}
	}

	return settings, nil
}

func userCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user cache directory: %w", err)
	}
	return dir, nil
}
