package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/kailas-cloud/dishpal/internal/domain"
)

// SRID is the spatial reference every stored point is tagged with (WGS-84).
const SRID = 4326

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate validates and returns a Coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate returns ErrInvalidCoordinate when latitude is outside [-90,90],
// longitude outside [-180,180], or either is NaN.
func (c Coordinate) Validate() error {
	if !ValidateCoordinates(c.Lat, c.Lon) {
		return fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	return nil
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
// NaN fails both comparisons and is rejected.
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Point returns c as a go-geom point (X=lon, Y=lat) tagged with SRID 4326.
func (c Coordinate) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(SRID)
}

// FromPoint converts a point back to a Coordinate. Points carrying an SRID
// other than 4326 (or unset) are rejected.
func FromPoint(p *geom.Point) (Coordinate, error) {
	if p == nil || p.Empty() {
		return Coordinate{}, fmt.Errorf("%w: empty point", domain.ErrInvalidCoordinate)
	}
	if srid := p.SRID(); srid != 0 && srid != SRID {
		return Coordinate{}, fmt.Errorf("%w: srid %d", domain.ErrInvalidCoordinate, srid)
	}
	return NewCoordinate(p.Y(), p.X())
}

// WKT encodes c as "POINT (lon lat)".
func (c Coordinate) WKT() (string, error) {
	s, err := wkt.Marshal(c.Point())
	if err != nil {
		return "", fmt.Errorf("marshal wkt: %w", err)
	}
	return s, nil
}

// ParseWKT decodes a WKT point into a validated Coordinate.
func ParseWKT(s string) (Coordinate, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %w", domain.ErrInvalidCoordinate, err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: expected POINT, got %T", domain.ErrInvalidCoordinate, g)
	}
	return FromPoint(p.SetSRID(SRID))
}

// GeoJSON encodes c as a GeoJSON Point geometry.
func (c Coordinate) GeoJSON() (*geojson.Geometry, error) {
	g, err := geojson.Encode(c.Point())
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return g, nil
}
