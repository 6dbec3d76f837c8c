package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
)

// Memory is a process-local catalog for tests and single-node demos.
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]discount.Discount
	byVID map[string]string
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]discount.Discount),
		byVID: make(map[string]string),
	}
}

// Create stores d. A taken id or vector id yields ErrAlreadyExists.
func (m *Memory) Create(_ context.Context, d discount.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.ID()]; ok {
		return fmt.Errorf("discount %s: %w", d.ID(), domain.ErrAlreadyExists)
	}
	if _, ok := m.byVID[d.VectorID()]; ok && d.VectorID() != "" {
		return fmt.Errorf("vector %s: %w", d.VectorID(), domain.ErrAlreadyExists)
	}
	m.byID[d.ID()] = d
	m.order = append(m.order, d.ID())
	if d.VectorID() != "" {
		m.byVID[d.VectorID()] = d.ID()
	}
	return nil
}

// GetByID returns the discount or ErrNotFound.
func (m *Memory) GetByID(_ context.Context, id string) (discount.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byID[id]
	if !ok {
		return discount.Discount{}, fmt.Errorf("discount %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

// GetByVectorID returns the discount owning vectorID or ErrNotFound.
func (m *Memory) GetByVectorID(_ context.Context, vectorID string) (discount.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byVID[vectorID]
	if !ok {
		return discount.Discount{}, fmt.Errorf("vector %s: %w", vectorID, domain.ErrNotFound)
	}
	return m.byID[id], nil
}

// Delete removes id. Missing id → ErrNotFound.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("discount %s: %w", id, domain.ErrNotFound)
	}
	delete(m.byID, id)
	delete(m.byVID, d.VectorID())
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every discount in creation order.
func (m *Memory) List(_ context.Context) ([]discount.Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]discount.Discount, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

// ListLocated returns discounts that carry a location, in creation order.
func (m *Memory) ListLocated(ctx context.Context) ([]discount.Discount, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	return located(all), nil
}
