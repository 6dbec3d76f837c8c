package dishpal

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver    string
	addrs     []string
	password  string
	keyPrefix string

	embedder Embedder
	dim      int

	hnswM           int
	hnswEFConstruct int

	locatorURL     string
	locatorTimeout time.Duration

	proximityLimit int
	logger         *zap.Logger
}

// WithValkey stores discounts and vectors in Valkey with the search module.
func WithValkey(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithRedis stores discounts and vectors in Redis Stack.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithKeyPrefix namespaces every key (default "dishpal:").
func WithKeyPrefix(p string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = p
	}
}

// WithEmbedder enables text search. dim must match the embedder output.
func WithEmbedder(e Embedder, dim int) Option {
	return func(c *clientConfig) {
		c.embedder = e
		c.dim = dim
	}
}

// WithHNSW sets HNSW graph parameters for the server-side vector index.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithIPLocator enables FromIP searches against an ip-api.com compatible endpoint.
func WithIPLocator(baseURL string, timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.locatorURL = baseURL
		c.locatorTimeout = timeout
	}
}

// WithProximityLimit caps location search results (default 10).
func WithProximityLimit(n int) Option {
	return func(c *clientConfig) {
		c.proximityLimit = n
	}
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
