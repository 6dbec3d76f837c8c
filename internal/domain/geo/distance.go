package geo

import (
	"fmt"

	"github.com/tidwall/geodesic"
)

// Distance returns the ellipsoidal (WGS-84) geodesic distance between a and b
// in kilometres, solved with Karney's algorithm. It converges for every valid
// pair, antipodal ones included. Identical points give exactly 0, and
// Distance(a, b) == Distance(b, a) bit for bit.
func Distance(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, fmt.Errorf("origin: %w", err)
	}
	if err := b.Validate(); err != nil {
		return 0, fmt.Errorf("destination: %w", err)
	}
	if a == b {
		return 0, nil
	}
	// решаем всегда в одном порядке, иначе расходится последний ulp
	if b.less(a) {
		a, b = b, a
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &meters, nil, nil)
	return meters / 1000, nil
}

func (c Coordinate) less(o Coordinate) bool {
	if c.Lat != o.Lat {
		return c.Lat < o.Lat
	}
	return c.Lon < o.Lon
}
