package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the dishpal API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Auth        AuthConfig        `yaml:"auth"`
	Index       IndexConfig       `yaml:"index"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	IPLocator   IPLocatorConfig   `yaml:"ip_locator"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW settings for the search-module backend and loader batching.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// VectorIndexConfig selects the nearest-neighbour backend.
type VectorIndexConfig struct {
	Driver      string `yaml:"driver"` // memory, store (valkey/redis FT), pgvector
	PostgresDSN string `yaml:"postgres_dsn"`
	Table       string `yaml:"table"`
}

// CatalogConfig selects where discount records live.
type CatalogConfig struct {
	Driver string `yaml:"driver"` // memory, store
}

// IPLocatorConfig holds the geolocation lookup settings.
type IPLocatorConfig struct {
	BaseURL       string `yaml:"base_url"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// DiscoveryConfig tunes ranking.
type DiscoveryConfig struct {
	Vectorizer        string `yaml:"vectorizer"`
	DefaultTopK       int    `yaml:"default_top_k"`
	ProximityLimit    int    `yaml:"proximity_limit"`
	ParallelThreshold int    `yaml:"parallel_threshold"` // catalog size above which distances are computed in chunks
	Workers           int    `yaml:"workers"`
	CacheTTLSec       int    `yaml:"embedding_cache_ttl_sec"` // 0 = no expiry
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 100
	}
	if c.VectorIndex.Driver == "" {
		c.VectorIndex.Driver = "store"
	}
	if c.VectorIndex.Table == "" {
		c.VectorIndex.Table = "discount_vectors"
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "store"
	}
	if c.IPLocator.BaseURL == "" {
		c.IPLocator.BaseURL = "http://ip-api.com/json"
	}
	if c.IPLocator.TimeoutMs <= 0 {
		c.IPLocator.TimeoutMs = 3000
	}
	if c.IPLocator.RatePerMinute <= 0 {
		c.IPLocator.RatePerMinute = 45
	}
	if c.Discovery.DefaultTopK <= 0 {
		c.Discovery.DefaultTopK = 10
	}
	if c.Discovery.ProximityLimit <= 0 {
		c.Discovery.ProximityLimit = 10
	}
	if c.Discovery.ParallelThreshold <= 0 {
		c.Discovery.ParallelThreshold = 2048
	}
	if c.Discovery.Workers <= 0 {
		c.Discovery.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "dishpal:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.NeedsStore() && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.VectorIndex.Driver {
	case "memory", "store":
	case "pgvector":
		if c.VectorIndex.PostgresDSN == "" {
			return fmt.Errorf("vector_index.postgres_dsn is required for pgvector driver")
		}
	default:
		return fmt.Errorf("vector_index.driver must be memory, store or pgvector, got %q", c.VectorIndex.Driver)
	}
	switch c.Catalog.Driver {
	case "memory", "store":
	default:
		return fmt.Errorf("catalog.driver must be memory or store, got %q", c.Catalog.Driver)
	}
	if name := c.Discovery.Vectorizer; name != "" {
		v, ok := c.Embedding.Vectorizers[name]
		if !ok {
			return fmt.Errorf("discovery.vectorizer %q is not defined in embedding.vectorizers", name)
		}
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined", name, v.Provider)
		}
		if v.Dimensions <= 0 {
			return fmt.Errorf("embedding.vectorizers.%s.dimensions must be positive", name)
		}
	}
	return nil
}

// NeedsStore reports whether any component talks to valkey/redis.
func (c *Config) NeedsStore() bool {
	return c.VectorIndex.Driver == "store" || c.Catalog.Driver == "store"
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
