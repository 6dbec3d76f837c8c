package dishpal

import (
	"context"
	"time"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

// Errors returned by the client. Test with errors.Is.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrInvalidCoordinate   = domain.ErrInvalidCoordinate
	ErrInvalidQuery        = domain.ErrInvalidQuery
	ErrInvalidArgument     = domain.ErrInvalidArgument
	ErrLocationUnavailable = domain.ErrLocationUnavailable
	ErrEmbeddingFailed     = domain.ErrEmbeddingFailed
	ErrDimensionMismatch   = domain.ErrDimensionMismatch
)

// EmbeddingResult is one vector and the tokens spent on it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Discount is a discount record. Lat/Lon are optional WGS-84 degrees;
// without them the retailer location is used.
type Discount struct {
	ID              string
	VectorID        string
	RetailerID      string
	RetailerName    string
	RetailerContact string
	RetailerLat     *float64
	RetailerLon     *float64
	Description     string
	Code            string
	ExpiresAt       time.Time
	Lat             *float64
	Lon             *float64
	CreatedAt       time.Time
}

// Hit is a ranked discount. Score is kilometres for location searches and
// embedding distance for text searches; lower is better.
type Hit struct {
	Discount Discount
	Rank     int
	Score    float64
}

func (d *Discount) params() (discount.Params, error) {
	loc, err := coordinate(d.Lat, d.Lon)
	if err != nil {
		return discount.Params{}, err
	}
	rloc, err := coordinate(d.RetailerLat, d.RetailerLon)
	if err != nil {
		return discount.Params{}, err
	}
	return discount.Params{
		ID:       d.ID,
		VectorID: d.VectorID,
		Retailer: discount.Retailer{
			ID:          d.RetailerID,
			Name:        d.RetailerName,
			ContactInfo: d.RetailerContact,
			Location:    rloc,
		},
		Description: d.Description,
		Code:        d.Code,
		ExpiresAt:   d.ExpiresAt,
		Location:    loc,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func coordinate(lat, lon *float64) (*geo.Coordinate, error) {
	switch {
	case lat == nil && lon == nil:
		return nil, nil
	case lat == nil || lon == nil:
		return nil, ErrInvalidCoordinate
	}
	return &geo.Coordinate{Lat: *lat, Lon: *lon}, nil
}

func fromDomain(d *discount.Discount) Discount {
	r := d.Retailer()
	out := Discount{
		ID:              d.ID(),
		VectorID:        d.VectorID(),
		RetailerID:      r.ID,
		RetailerName:    r.Name,
		RetailerContact: r.ContactInfo,
		Description:     d.Description(),
		Code:            d.Code(),
		ExpiresAt:       d.ExpiresAt(),
		CreatedAt:       d.CreatedAt(),
	}
	if r.Location != nil {
		lat, lon := r.Location.Lat, r.Location.Lon
		out.RetailerLat, out.RetailerLon = &lat, &lon
	}
	if loc := d.Location(); loc != nil {
		lat, lon := loc.Lat, loc.Lon
		out.Lat, out.Lon = &lat, &lon
	}
	return out
}
