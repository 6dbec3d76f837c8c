package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/repository/catalog"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/memory"
)

// --- Mocks ---

type mockEmbedder struct {
	dim   int
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	v := make([]float32, m.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

type batchEmbedder struct {
	mockEmbedder
	batchCalls int
}

func (m *batchEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	out := domain.BatchEmbeddingResult{}
	for _, t := range texts {
		r, err := m.mockEmbedder.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings = append(out.Embeddings, r.Embedding)
	}
	return out, nil
}

// failingCatalog rejects every Create.
type failingCatalog struct {
	*catalog.Memory
}

func (failingCatalog) Create(context.Context, discount.Discount) error {
	return errors.New("catalog unavailable")
}

func params(desc string) discount.Params {
	return discount.Params{
		Retailer:    discount.Retailer{Name: "Luigi's", Location: &geo.Coordinate{Lat: 41.9, Lon: 12.5}},
		Description: desc,
		Code:        "PIZZA2X1",
		ExpiresAt:   time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T, emb Embedder) (*Service, *catalog.Memory, *memory.Index) {
	t.Helper()
	idx, err := memory.New(4)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.NewMemory()
	return New(cat, idx, emb, zap.NewNop()), cat, idx
}

// --- Tests ---

func TestCreate_StoresRecordAndVector(t *testing.T) {
	ctx := context.Background()
	svc, cat, idx := newTestService(t, &mockEmbedder{dim: 4})

	d, err := svc.Create(ctx, params("two pizzas for the price of one"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID() == "" || d.VectorID() == "" {
		t.Fatalf("expected generated ids, got id=%q vid=%q", d.ID(), d.VectorID())
	}
	if d.CreatedAt().IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if d.Location() == nil || d.Location().Lat != 41.9 {
		t.Errorf("expected retailer location fallback, got %v", d.Location())
	}

	got, err := cat.GetByVectorID(ctx, d.VectorID())
	if err != nil || got.ID() != d.ID() {
		t.Fatalf("catalog lookup by vector id: %v %v", got.ID(), err)
	}

	vec, _ := (&mockEmbedder{dim: 4}).Embed(ctx, d.Description())
	hits, err := idx.Search(ctx, vec.Embedding, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID() != d.VectorID() || hits[0].Score() != 0 {
		t.Fatalf("expected the new vector as exact top hit, got %+v", hits)
	}
}

func TestCreate_KeepsSuppliedIDs(t *testing.T) {
	svc, _, _ := newTestService(t, &mockEmbedder{dim: 4})
	p := params("coffee")
	p.ID, p.VectorID = "d-1", "v-1"

	d, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID() != "d-1" || d.VectorID() != "v-1" {
		t.Errorf("ids overwritten: %s %s", d.ID(), d.VectorID())
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	emb := &mockEmbedder{dim: 4}
	svc, _, _ := newTestService(t, emb)
	p := params("   ")

	_, err := svc.Create(context.Background(), p)
	if !errors.Is(err, domain.ErrInvalidArgument) || !errors.Is(err, discount.ErrInvalid) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if emb.calls != 0 {
		t.Error("invalid input must not be embedded")
	}
}

func TestCreate_InvalidLocation(t *testing.T) {
	svc, _, _ := newTestService(t, &mockEmbedder{dim: 4})
	p := params("coffee")
	p.Location = &geo.Coordinate{Lat: 91, Lon: 0}

	_, err := svc.Create(context.Background(), p)
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestCreate_EmbeddingFailed(t *testing.T) {
	svc, cat, _ := newTestService(t, &mockEmbedder{err: domain.ErrEmbeddingProviderError})

	_, err := svc.Create(context.Background(), params("coffee"))
	if !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
	if all, _ := cat.List(context.Background()); len(all) != 0 {
		t.Fatal("nothing must be stored when embedding fails")
	}
}

func TestCreate_DimensionMismatch(t *testing.T) {
	svc, cat, _ := newTestService(t, &mockEmbedder{dim: 3})

	_, err := svc.Create(context.Background(), params("coffee"))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if all, _ := cat.List(context.Background()); len(all) != 0 {
		t.Fatal("nothing must be stored on dimension mismatch")
	}
}

func TestCreate_RollsBackVectorOnCatalogError(t *testing.T) {
	idx, err := memory.New(4)
	if err != nil {
		t.Fatal(err)
	}
	svc := New(failingCatalog{catalog.NewMemory()}, idx, &mockEmbedder{dim: 4}, zap.NewNop())

	if _, err := svc.Create(context.Background(), params("coffee")); err == nil {
		t.Fatal("expected catalog error")
	}
	if idx.Len() != 0 {
		t.Fatalf("expected vector rolled back, index has %d entries", idx.Len())
	}
}

func TestCreate_DuplicateKeepsExistingVector(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{dim: 4}
	svc, cat, idx := newTestService(t, emb)

	p := params("coffee")
	p.ID, p.VectorID = "d1", "v1"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name     string
		id, vid  string
		wantMiss string
	}{
		{"same ids", "d1", "v1", ""},
		{"same id", "d1", "v2", "v2"},
		{"same vector id", "d2", "v1", "d2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup := params("a different description")
			dup.ID, dup.VectorID = tt.id, tt.vid
			calls := emb.calls

			if _, err := svc.Create(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists, got %v", err)
			}
			if emb.calls != calls {
				t.Error("duplicate must be rejected before embedding")
			}
			if idx.Len() != 1 {
				t.Fatalf("index has %d vectors, want 1", idx.Len())
			}
			owner, err := cat.GetByVectorID(ctx, "v1")
			if err != nil || owner.ID() != "d1" || owner.Description() != "coffee" {
				t.Fatalf("existing discount changed: %q %v", owner.ID(), err)
			}
		})
	}

	vec, _ := emb.Embed(ctx, "coffee")
	hits, err := idx.Search(ctx, vec.Embedding, 1)
	if err != nil || len(hits) != 1 || hits[0].ID() != "v1" {
		t.Fatalf("existing vector lost from search: %+v %v", hits, err)
	}
}

func TestCreateBatch_ReimportKeepsVectors(t *testing.T) {
	ctx := context.Background()
	emb := &batchEmbedder{mockEmbedder: mockEmbedder{dim: 4}}
	svc, _, idx := newTestService(t, emb)

	p := params("coffee")
	p.ID, p.VectorID = "d1", "v1"
	if _, err := svc.CreateBatch(ctx, []discount.Params{p}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	stored, err := svc.CreateBatch(ctx, []discount.Params{p})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("re-import: %v, want ErrAlreadyExists", err)
	}
	if len(stored) != 0 {
		t.Errorf("re-import stored %d discounts", len(stored))
	}
	if idx.Len() != 1 {
		t.Fatalf("index has %d vectors after re-import, want 1", idx.Len())
	}
}

func TestCreateBatch_DuplicateWithinBatch(t *testing.T) {
	ctx := context.Background()
	svc, cat, idx := newTestService(t, &batchEmbedder{mockEmbedder: mockEmbedder{dim: 4}})

	a := params("coffee")
	a.ID, a.VectorID = "d1", "v1"
	b := params("tea")
	b.ID, b.VectorID = "d2", "v1"

	stored, err := svc.CreateBatch(ctx, []discount.Params{a, b})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if len(stored) != 1 || stored[0].ID() != "d1" {
		t.Fatalf("stored = %d, want d1 only", len(stored))
	}
	owner, err := cat.GetByVectorID(ctx, "v1")
	if err != nil || owner.ID() != "d1" {
		t.Fatalf("vector owner = %q %v", owner.ID(), err)
	}
	// вектор первого не перезаписан вторым
	vec, _ := (&mockEmbedder{dim: 4}).Embed(ctx, "coffee")
	hits, _ := idx.Search(ctx, vec.Embedding, 1)
	if len(hits) != 1 || hits[0].Score() != 0 {
		t.Fatalf("v1 vector overwritten: %+v", hits)
	}
}

func TestCreate_WithoutEmbedder(t *testing.T) {
	cat := catalog.NewMemory()
	svc := New(cat, nil, nil, zap.NewNop())

	d, err := svc.Create(context.Background(), params("coffee"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.VectorID() != "" {
		t.Errorf("expected no vector id, got %q", d.VectorID())
	}
	if _, err := cat.GetByID(context.Background(), d.ID()); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestCreateBatch_UsesBatchEmbedding(t *testing.T) {
	emb := &batchEmbedder{mockEmbedder: mockEmbedder{dim: 4}}
	svc, cat, idx := newTestService(t, emb)

	ds, err := svc.CreateBatch(context.Background(), []discount.Params{params("a"), params("bb"), params("ccc")})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if len(ds) != 3 {
		t.Fatalf("expected 3 discounts, got %d", len(ds))
	}
	if emb.batchCalls != 1 {
		t.Errorf("expected one batch call, got %d", emb.batchCalls)
	}
	if idx.Len() != 3 {
		t.Errorf("expected 3 vectors, got %d", idx.Len())
	}
	all, _ := cat.List(context.Background())
	if len(all) != 3 || all[0].Description() != "a" || all[2].Description() != "ccc" {
		t.Errorf("unexpected catalog contents")
	}
}

func TestCreateBatch_RejectsInvalidBeforeEmbedding(t *testing.T) {
	emb := &batchEmbedder{mockEmbedder: mockEmbedder{dim: 4}}
	svc, _, _ := newTestService(t, emb)

	bad := params("x")
	bad.Code = ""
	_, err := svc.CreateBatch(context.Background(), []discount.Params{params("ok"), bad})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if emb.batchCalls != 0 {
		t.Error("batch must not be embedded when validation fails")
	}
}

func TestDeleteByVectorID(t *testing.T) {
	ctx := context.Background()
	svc, cat, idx := newTestService(t, &mockEmbedder{dim: 4})

	d, err := svc.Create(ctx, params("coffee"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteByVectorID(ctx, d.VectorID()); err != nil {
		t.Fatalf("DeleteByVectorID: %v", err)
	}
	if _, err := cat.GetByID(ctx, d.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected record gone, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected vector gone, index has %d", idx.Len())
	}

	if err := svc.DeleteByVectorID(ctx, d.VectorID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &mockEmbedder{dim: 4})

	first, _ := svc.Create(ctx, params("first"))
	second, _ := svc.Create(ctx, params("second"))

	got, err := svc.Get(ctx, second.ID())
	if err != nil || got.Description() != "second" {
		t.Fatalf("Get: %v %v", got.Description(), err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID() != first.ID() || all[1].ID() != second.ID() {
		t.Fatalf("unexpected list order")
	}
}

// brokenListCatalog fails every List.
type brokenListCatalog struct {
	*catalog.Memory
}

func (brokenListCatalog) List(context.Context) ([]discount.Discount, error) {
	return nil, errors.New("scan failed")
}

func TestRetailers_FromCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	for _, r := range []discount.Retailer{
		{ID: "r-forno", Name: "Forno"},
		{Name: "Luigi's"},
		{ID: "r-forno", Name: "Forno"},
	} {
		p := params("deal at " + r.Name)
		p.Retailer = r
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rs, err := svc.ListRetailers(ctx)
	if err != nil {
		t.Fatalf("ListRetailers: %v", err)
	}
	if len(rs) != 2 || rs[0].Key() != "r-forno" || rs[1].Key() != "Luigi's" {
		t.Fatalf("retailers = %+v", rs)
	}
	if rs[0].Discounts != 2 {
		t.Errorf("r-forno discounts = %d, want 2", rs[0].Discounts)
	}

	r, err := svc.GetRetailer(ctx, "Luigi's")
	if err != nil || r.Name != "Luigi's" {
		t.Fatalf("GetRetailer = %+v, %v", r, err)
	}

	_, err = svc.GetRetailer(ctx, "r-missing")
	if !errors.Is(err, discount.ErrRetailerNotFound) {
		t.Errorf("missing retailer: err = %v", err)
	}
}

func TestRetailers_CatalogError(t *testing.T) {
	svc := New(brokenListCatalog{catalog.NewMemory()}, nil, nil, zap.NewNop())

	if _, err := svc.ListRetailers(context.Background()); err == nil {
		t.Error("ListRetailers: expected error")
	}
	_, err := svc.GetRetailer(context.Background(), "r-1")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRetailer: catalog failure must not look like 404, got %v", err)
	}
}
