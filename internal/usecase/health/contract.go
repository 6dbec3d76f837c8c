package health

import "context"

// Pinger answers a cheap round trip. The Valkey/Redis store behind the
// catalog and the pgvector pool satisfy it as is.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc turns a check function into a Pinger, e.g. an embedding
// provider's HealthCheck method value.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Keys of Report.Checks.
const (
	CheckStore       = "database"
	CheckVectorIndex = "vector_index"
	CheckEmbedding   = "embedding"
)
