// Package loader bulk-imports discounts from parquet files.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

// DefaultBatchSize is used when New gets a non-positive batch size.
const DefaultBatchSize = 100

// Row is one discount in the import schema.
type Row struct {
	ID              string   `parquet:"id,optional"`
	VectorID        string   `parquet:"vector_id,optional"`
	RetailerID      string   `parquet:"retailer_id,optional"`
	RetailerName    string   `parquet:"retailer_name"`
	RetailerContact string   `parquet:"retailer_contact,optional"`
	Description     string   `parquet:"description"`
	Code            string   `parquet:"code"`
	ExpiresAtMs     int64    `parquet:"expires_at_ms,optional"` // unix millis, 0 = open-ended
	Lat             *float64 `parquet:"lat,optional"`
	Lon             *float64 `parquet:"lon,optional"`
}

// Params converts r. Lat and lon must both be set or both be empty.
func (r *Row) Params() (discount.Params, error) {
	p := discount.Params{
		ID:       r.ID,
		VectorID: r.VectorID,
		Retailer: discount.Retailer{
			ID:          r.RetailerID,
			Name:        r.RetailerName,
			ContactInfo: r.RetailerContact,
		},
		Description: r.Description,
		Code:        r.Code,
	}
	if r.ExpiresAtMs > 0 {
		p.ExpiresAt = time.UnixMilli(r.ExpiresAtMs).UTC()
	}
	switch {
	case r.Lat != nil && r.Lon != nil:
		p.Location = &geo.Coordinate{Lat: *r.Lat, Lon: *r.Lon}
	case r.Lat != nil || r.Lon != nil:
		return discount.Params{}, fmt.Errorf("%w: lat and lon must be given together", domain.ErrInvalidCoordinate)
	}
	return p, nil
}

// Creator stores a batch of discounts.
type Creator interface {
	CreateBatch(ctx context.Context, params []discount.Params) ([]discount.Discount, error)
}

// Stats counts the outcome of a load.
type Stats struct {
	Files   int
	Rows    int
	Loaded  int
	Skipped int
}

// Loader streams parquet rows into a Creator in batches.
type Loader struct {
	creator   Creator
	batchSize int
	logger    *zap.Logger
}

// New creates a Loader.
func New(creator Creator, batchSize int, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{creator: creator, batchSize: batchSize, logger: logger}
}

// LoadDir loads every *.parquet file in dir in name order.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Stats, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return Stats{}, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return Stats{}, fmt.Errorf("no parquet files found in %s", dir)
	}
	sort.Strings(files)

	var total Stats
	for _, f := range files {
		st, err := l.LoadFile(ctx, f)
		total.Files++
		total.Rows += st.Rows
		total.Loaded += st.Loaded
		total.Skipped += st.Skipped
		if err != nil {
			return total, fmt.Errorf("load %s: %w", filepath.Base(f), err)
		}
	}
	return total, nil
}

// LoadFile loads one parquet file. Rows that fail validation or already
// exist are skipped; any other error aborts the load.
func (l *Loader) LoadFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Stats{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[Row](f)
	defer r.Close()

	st := Stats{Files: 1}
	buf := make([]Row, l.batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			st.Rows += n
			if err := l.flush(ctx, buf[:n], &st); err != nil {
				return st, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return st, fmt.Errorf("read rows: %w", readErr)
		}
	}

	l.logger.Info("Parquet file loaded",
		zap.String("file", filepath.Base(path)),
		zap.Int("rows", st.Rows),
		zap.Int("loaded", st.Loaded),
		zap.Int("skipped", st.Skipped),
	)
	return st, nil
}

func (l *Loader) flush(ctx context.Context, rows []Row, st *Stats) error {
	batch := make([]discount.Params, 0, len(rows))
	for i := range rows {
		p, err := rows[i].Params()
		if err != nil {
			l.skip(st, rows[i].ID, err)
			continue
		}
		batch = append(batch, p)
	}
	if len(batch) == 0 {
		return nil
	}

	stored, err := l.creator.CreateBatch(ctx, batch)
	st.Loaded += len(stored)
	if err == nil {
		return nil
	}
	if !skippable(err) {
		return err
	}

	// one bad row rejects the whole batch: retry the remainder row by row
	for _, p := range batch[len(stored):] {
		if _, err := l.creator.CreateBatch(ctx, []discount.Params{p}); err != nil {
			if !skippable(err) {
				return err
			}
			l.skip(st, p.ID, err)
			continue
		}
		st.Loaded++
	}
	return nil
}

func (l *Loader) skip(st *Stats, id string, err error) {
	st.Skipped++
	l.logger.Warn("Skipping row", zap.String("id", id), zap.Error(err))
}

func skippable(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrInvalidCoordinate) ||
		errors.Is(err, domain.ErrAlreadyExists)
}
