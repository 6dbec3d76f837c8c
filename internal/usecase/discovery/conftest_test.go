package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

// --- Mocks ---

type mockCatalog struct {
	located  []discount.Discount
	byVector map[string]discount.Discount
	listErr  error
	getErr   error
}

func (m *mockCatalog) ListLocated(_ context.Context) ([]discount.Discount, error) {
	return m.located, m.listErr
}

func (m *mockCatalog) GetByVectorID(_ context.Context, vid string) (discount.Discount, error) {
	if m.getErr != nil {
		return discount.Discount{}, m.getErr
	}
	d, ok := m.byVector[vid]
	if !ok {
		return discount.Discount{}, domain.ErrNotFound
	}
	return d, nil
}

type mockLocator struct {
	coord *geo.Coordinate
	err   error
	calls int
	ip    string
}

func (m *mockLocator) Locate(_ context.Context, ip string) (*geo.Coordinate, error) {
	m.calls++
	m.ip = ip
	return m.coord, m.err
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

type mockIndex struct {
	dim   int
	hits  []result.Ranked
	err   error
	gotK  int
	calls int
}

func (m *mockIndex) Search(_ context.Context, _ []float32, topK int) ([]result.Ranked, error) {
	m.calls++
	m.gotK = topK
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > topK {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

func (m *mockIndex) Dimension() int { return m.dim }

// --- Helpers ---

func at(lat, lon float64) *geo.Coordinate {
	return &geo.Coordinate{Lat: lat, Lon: lon}
}

func mkDiscount(t *testing.T, id string, loc *geo.Coordinate) discount.Discount {
	t.Helper()
	d, err := discount.New(discount.Params{
		ID:          id,
		VectorID:    "v-" + id,
		Retailer:    discount.Retailer{ID: "r-" + id, Name: "Shop " + id},
		Description: "deal " + id,
		Code:        "CODE",
		ExpiresAt:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:    loc,
	})
	if err != nil {
		t.Fatalf("discount.New: %v", err)
	}
	return d
}

// alongMeridian returns n discounts north of (0,0), 0.01 degree apart, id "d00".."dNN".
func alongMeridian(t *testing.T, n int) []discount.Discount {
	t.Helper()
	out := make([]discount.Discount, n)
	for i := range n {
		out[i] = mkDiscount(t, fmt.Sprintf("d%02d", i), at(float64(i)*0.01, 0))
	}
	return out
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Result.ID()
	}
	return ids
}
