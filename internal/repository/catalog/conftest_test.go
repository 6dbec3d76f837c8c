package catalog

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/dishpal/internal/db"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

// fakeStore is an in-memory stand-in for the Valkey JSON/KV commands the repo uses.
type fakeStore struct {
	json     map[string][]byte
	kv       map[string][]byte
	seq      int64
	scanFn   func(pattern string) ([]string, error)
	setNXErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{json: map[string][]byte{}, kv: map[string][]byte{}}
}

func (f *fakeStore) JSONSetNX(_ context.Context, key, _ string, data []byte) error {
	if _, ok := f.json[key]; ok {
		return db.ErrKeyExists
	}
	f.json[key] = data
	return nil
}

func (f *fakeStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	d, ok := f.json[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return d, nil
}

func (f *fakeStore) JSONMGet(_ context.Context, keys []string, _ string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = f.json[k]
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	d, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return d, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value []byte) error {
	if f.setNXErr != nil {
		return f.setNXErr
	}
	if _, ok := f.kv[key]; ok {
		return db.ErrKeyExists
	}
	f.kv[key] = value
	return nil
}

func (f *fakeStore) Incr(_ context.Context, _ string) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	delete(f.json, key)
	delete(f.kv, key)
	return nil
}

// Scan returns keys in reverse lexical order so tests prove List sorts by seq.
func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if f.scanFn != nil {
		return f.scanFn(pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.json {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func mustDiscount(t *testing.T, id, vid string, loc *geo.Coordinate) discount.Discount {
	t.Helper()
	d, err := discount.New(discount.Params{
		ID:          id,
		VectorID:    vid,
		Retailer:    discount.Retailer{ID: "r-" + id, Name: "Shop " + id},
		Description: "deal " + id,
		Code:        "CODE-" + id,
		ExpiresAt:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:    loc,
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("discount.New: %v", err)
	}
	return d
}
