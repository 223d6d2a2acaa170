// Package config loads per-environment YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/classify"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/route"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/search"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Embedding providers.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
)

// Config holds the retrieval service configuration.
type Config struct {
	HTTP       HTTPConfig      `yaml:"http"`
	Records    RecordsConfig   `yaml:"records"`
	Cache      CacheConfig     `yaml:"cache"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Auth       AuthConfig      `yaml:"auth"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Classifier classify.Params `yaml:"classifier"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys means open access.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	HealthTimeoutMs int `yaml:"health_timeout_ms"`
}

// RecordsConfig points at the SQLite record store.
type RecordsConfig struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

// CacheConfig selects and sizes the response cache. Redis settings also
// back the embedding cache.
type CacheConfig struct {
	Backend          string   `yaml:"backend"` // memory, redis (default: memory)
	TTLSec           int      `yaml:"ttl_sec"`
	Capacity         int      `yaml:"capacity"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	EmbeddingTTLSec  int      `yaml:"embedding_ttl_sec"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"` // local, openai (default: local)
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	QueryInstruction string `yaml:"query_instruction"`
}

// RetrievalConfig tunes routing, execution and the branch pool.
type RetrievalConfig struct {
	BranchTimeoutMs int              `yaml:"branch_timeout_ms"`
	FlightTimeoutMs int              `yaml:"flight_timeout_ms"`
	PoolSize        int              `yaml:"pool_size"`
	CandidateWindow int              `yaml:"candidate_window"`
	Budgets         search.Budgets   `yaml:"budgets"`
	Thresholds      route.Thresholds `yaml:"thresholds"`
}

// Load reads config/<env>.yaml, searching the working directory first and
// then the source tree.
func Load(env string) (Config, error) {
	return LoadFile(locate(env + ".yaml"))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} and ${VAR:-default} references, decodes the YAML,
// fills defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// orDefault replaces a non-positive number with def.
func orDefault[T int | float64](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

// orDefaultZero replaces a zero value with def. Composite sections use it so
// a partially written section is kept as is.
func orDefaultZero[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	orDefault(&c.HTTP.ReadTimeoutSec, 10)
	orDefault(&c.HTTP.WriteTimeoutSec, 30)
	orDefault(&c.HTTP.ShutdownSec, 10)
	orDefault(&c.HTTP.HealthTimeoutMs, 2000)

	orDefaultZero(&c.Records.Path, "socretrieve.db")

	orDefaultZero(&c.Cache.Backend, CacheMemory)
	orDefault(&c.Cache.TTLSec, 300)
	orDefault(&c.Cache.Capacity, 100)
	orDefault(&c.Cache.ReadinessTimeout, 10)
	orDefault(&c.Cache.EmbeddingTTLSec, 86400)

	orDefaultZero(&c.Embedding.Provider, ProviderLocal)
	orDefault(&c.Embedding.Dimensions, domain.DefaultEmbeddingDimensions)
	orDefault(&c.Embedding.TimeoutSec, 15)

	orDefault(&c.Retrieval.BranchTimeoutMs, 10000)
	orDefault(&c.Retrieval.FlightTimeoutMs, int(search.DefaultFlightTimeout.Milliseconds()))
	orDefault(&c.Retrieval.PoolSize, 64)
	orDefault(&c.Retrieval.CandidateWindow, search.DefaultCandidateWindow)
	orDefaultZero(&c.Retrieval.Budgets, search.DefaultBudgets())
	orDefaultZero(&c.Retrieval.Thresholds, route.DefaultThresholds())
	orDefaultZero(&c.Classifier, classify.DefaultParams())
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		fail("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			fail("cache.addrs is required for the redis backend")
		}
	default:
		fail("cache.backend must be %q or %q, got %q", CacheMemory, CacheRedis, c.Cache.Backend)
	}

	switch c.Embedding.Provider {
	case ProviderLocal:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			fail("embedding.model is required for the openai provider")
		}
	default:
		fail("embedding.provider must be %q or %q, got %q", ProviderLocal, ProviderOpenAI, c.Embedding.Provider)
	}

	b := c.Retrieval.Budgets
	for _, f := range []struct {
		name string
		v    float64
	}{{"semantic", b.Semantic}, {"specific", b.Specific}, {"structured", b.Structured}, {"shortfall_ratio", b.ShortfallRatio}} {
		if f.v <= 0 || f.v > 1 {
			fail("retrieval.budgets.%s must be in (0, 1], got %v", f.name, f.v)
		}
	}

	th := c.Retrieval.Thresholds
	for _, f := range []struct {
		name string
		v    float64
	}{{"specific", th.Specific}, {"structured", th.Structured}, {"ambiguous", th.Ambiguous}, {"sequential", th.Sequential}} {
		if f.v < 0 || f.v > 1 {
			fail("retrieval.thresholds.%s must be in [0, 1], got %v", f.name, f.v)
		}
	}

	if err := c.Classifier.Validate(); err != nil {
		fail("classifier: %w", err)
	}
	return errors.Join(errs...)
}

// locate returns the first existing config/<name> under the working
// directory or the module root. A miss yields the working-directory path so
// the read error names it.
func locate(name string) string {
	_, self, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(self))) // internal/config -> module root
	candidates := []string{
		filepath.Join("config", name),
		filepath.Join(root, "config", name),
	}
	if i := slices.IndexFunc(candidates, exists); i >= 0 {
		return candidates[i]
	}
	return candidates[0]
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv substitutes ${VAR}; ${VAR:-def} falls back to def when VAR is
// unset or empty.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name, def, hasDef := strings.Cut(string(ref[2:len(ref)-1]), ":-")
		if v := os.Getenv(name); v != "" || !hasDef {
			return []byte(v)
		}
		return []byte(def)
	})
}
