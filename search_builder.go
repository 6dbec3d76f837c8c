package dishpal

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/query"
)

// SearchBuilder is a fluent builder for discovery queries.
type SearchBuilder struct {
	client *Client

	// Location parameters.
	coord    *geo.Coordinate
	ip       string
	radiusKm *float64

	// Text parameters.
	text  *string
	limit *int
}

// Near ranks by distance from lat/lon.
func (b *SearchBuilder) Near(lat, lon float64) *SearchBuilder {
	b.coord = &geo.Coordinate{Lat: lat, Lon: lon}
	return b
}

// FromIP ranks by distance from the geolocated ip. Needs WithIPLocator.
func (b *SearchBuilder) FromIP(ip string) *SearchBuilder {
	b.ip = ip
	return b
}

// Km keeps location hits within radius kilometres, ties at the boundary included.
func (b *SearchBuilder) Km(radius float64) *SearchBuilder {
	b.radiusKm = &radius
	return b
}

// Query ranks by similarity to q.
func (b *SearchBuilder) Query(q string) *SearchBuilder {
	b.text = &q
	return b
}

// Limit sets top_k for text searches (default 10).
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.limit = &n
	return b
}

// Do runs the search. No matches is an empty slice, not an error.
func (b *SearchBuilder) Do(ctx context.Context) ([]Hit, error) {
	q, err := query.Parse(query.Input{
		Coordinate:    b.coord,
		ClientIP:      b.ip,
		MaxDistanceKm: b.radiusKm,
		Text:          b.text,
		TopK:          b.limit,
	})
	if err != nil {
		return nil, err
	}

	found, err := b.client.discovery.Discover(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", q.Mode(), err)
	}

	hits := make([]Hit, len(found))
	for i := range found {
		hits[i] = Hit{
			Discount: fromDomain(&found[i].Discount),
			Rank:     found[i].Result.Rank(),
			Score:    found[i].Result.Score(),
		}
	}
	return hits, nil
}
