package embcache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/db"
	"github.com/kailas-cloud/dishpal/internal/domain"
)

// textEmbedder derives a vector from the text length and records what it was asked.
type textEmbedder struct {
	mu      sync.Mutex
	single  []string
	batches [][]string
	err     error
	// short truncates batch replies to provoke a count mismatch
	short bool
}

func vecFor(text string) []float32 {
	return []float32{float32(len(text)), float32(strings.Count(text, " ")), 1}
}

func (e *textEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.single = append(e.single, text)
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: vecFor(text), PromptTokens: 5, TotalTokens: 5}, nil
}

func (e *textEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := domain.BatchEmbeddingResult{PromptTokens: 5 * len(texts), TotalTokens: 5 * len(texts)}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, vecFor(t))
	}
	if e.short {
		out.Embeddings = out.Embeddings[:len(out.Embeddings)-1]
	}
	return out, nil
}

// singleOnly hides BatchEmbed so the cache has to fall back to per-text calls.
type singleOnly struct{ inner *textEmbedder }

func (s singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

// entry is a stored value with the expiry it was written with.
type entry struct {
	value []byte
	ttl   time.Duration
}

// memKV is an in-memory stand-in for the Valkey key space.
type memKV struct {
	mu     sync.Mutex
	data   map[string]entry
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: map[string]entry{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return e.value, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = entry{value: value, ttl: ttl}
	return nil
}

func (m *memKV) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}

func newCacheCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_embedding_cache_total"}, []string{"result"})
}

func newCache(t *testing.T, inner domain.Embedder, kv *memKV, opts Options) (*CachedEmbedder, *prometheus.CounterVec) {
	t.Helper()
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "dishpal:"
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	counter := newCacheCounter()
	return New(inner, kv, opts, counter, zap.NewNop()), counter
}
