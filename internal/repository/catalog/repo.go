// Package catalog stores discount records and answers the lookups the
// discovery engine needs.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/dishpal/internal/db"
	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
)

// store is the consumer interface for the catalog (ISP).
type store interface {
	JSONSetNX(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) error
	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo keeps each discount as a JSON document plus a vector-id pointer key.
// Listing order is the order of Create calls, tracked by a counter.
type Repo struct {
	store     store
	docPrefix string
	vidPrefix string
	seqKey    string
}

// New creates a store-backed catalog. keyPrefix namespaces all keys, e.g. "dishpal:".
func New(s store, keyPrefix string) *Repo {
	return &Repo{
		store:     s,
		docPrefix: keyPrefix + "discount:doc:",
		vidPrefix: keyPrefix + "discount:vid:",
		seqKey:    keyPrefix + "discount:seq",
	}
}

// Create stores a new discount. An id or vector id that is already taken
// yields ErrAlreadyExists and leaves the existing record untouched.
func (r *Repo) Create(ctx context.Context, d discount.Discount) error {
	seq, err := r.store.Incr(ctx, r.seqKey)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	dto, err := toDTO(&d, seq)
	if err != nil {
		return fmt.Errorf("encode discount %s: %w", d.ID(), err)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("marshal discount %s: %w", d.ID(), err)
	}
	if err := r.store.JSONSetNX(ctx, r.docPrefix+d.ID(), "$", data); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return fmt.Errorf("discount %s: %w", d.ID(), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("save discount %s: %w", d.ID(), err)
	}
	if d.VectorID() == "" {
		return nil
	}

	err = r.store.SetNX(ctx, r.vidPrefix+d.VectorID(), []byte(d.ID()))
	if err == nil {
		return nil
	}
	// документ без указателя не нужен
	if derr := r.store.Del(ctx, r.docPrefix+d.ID()); derr != nil {
		err = errors.Join(err, fmt.Errorf("undo discount %s: %w", d.ID(), derr))
	}
	if errors.Is(err, db.ErrKeyExists) {
		return fmt.Errorf("vector %s: %w", d.VectorID(), domain.ErrAlreadyExists)
	}
	return fmt.Errorf("save vector pointer %s: %w", d.VectorID(), err)
}

// GetByID returns the discount or ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, id string) (discount.Discount, error) {
	data, err := r.store.JSONGet(ctx, r.docPrefix+id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return discount.Discount{}, fmt.Errorf("discount %s: %w", id, domain.ErrNotFound)
		}
		return discount.Discount{}, fmt.Errorf("get discount %s: %w", id, err)
	}
	return decode(data)
}

// GetByVectorID resolves a vector index hit to its discount or ErrNotFound.
func (r *Repo) GetByVectorID(ctx context.Context, vectorID string) (discount.Discount, error) {
	id, err := r.store.Get(ctx, r.vidPrefix+vectorID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return discount.Discount{}, fmt.Errorf("vector %s: %w", vectorID, domain.ErrNotFound)
		}
		return discount.Discount{}, fmt.Errorf("get vector pointer %s: %w", vectorID, err)
	}
	return r.GetByID(ctx, string(id))
}

// Delete removes the discount and its vector pointer. Missing id → ErrNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.docPrefix+id); err != nil {
		return fmt.Errorf("delete discount %s: %w", id, err)
	}
	if d.VectorID() != "" {
		if err := r.store.Del(ctx, r.vidPrefix+d.VectorID()); err != nil {
			return fmt.Errorf("delete vector pointer %s: %w", d.VectorID(), err)
		}
	}
	return nil
}

// List returns every discount in creation order.
func (r *Repo) List(ctx context.Context) ([]discount.Discount, error) {
	keys, err := r.store.Scan(ctx, r.docPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan discounts: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := r.store.JSONMGet(ctx, keys, ".")
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}

	dtos := make([]discountDTO, 0, len(raw))
	for i, data := range raw {
		if data == nil {
			continue // deleted between SCAN and MGET
		}
		var dto discountDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("decode %s: %w", strings.TrimPrefix(keys[i], r.docPrefix), err)
		}
		dtos = append(dtos, dto)
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Seq < dtos[j].Seq })

	out := make([]discount.Discount, 0, len(dtos))
	for i := range dtos {
		d, err := fromDTO(&dtos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ListLocated returns discounts that carry a location, in creation order.
func (r *Repo) ListLocated(ctx context.Context) ([]discount.Discount, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return located(all), nil
}

func located(all []discount.Discount) []discount.Discount {
	out := all[:0:0]
	for i := range all {
		if all[i].Location() != nil {
			out = append(out, all[i])
		}
	}
	return out
}

func decode(data []byte) (discount.Discount, error) {
	var dto discountDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return discount.Discount{}, fmt.Errorf("unmarshal discount: %w", err)
	}
	return fromDTO(&dto)
}
