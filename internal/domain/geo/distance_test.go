package geo

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/kailas-cloud/dishpal/internal/domain"
)

var (
	rome  = Coordinate{Lat: 41.8902, Lon: 12.4924}
	paris = Coordinate{Lat: 48.8566, Lon: 2.3522}
)

func TestDistance_RomeParis(t *testing.T) {
	d, err := Distance(rome, paris)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// WGS-84 geodesic; the spherical estimate is ~1106.1 km.
	if math.Abs(d-1107.41) > 0.5 {
		t.Errorf("Distance(Rome, Paris) = %.3f km, want 1107.41 ± 0.5", d)
	}
}

func TestDistance_KnownPairs(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinate
		want float64
		tol  float64
	}{
		{"one degree of equator", Coordinate{0, 0}, Coordinate{0, 1}, 111.319, 0.01},
		{"pole to pole", Coordinate{90, 0}, Coordinate{-90, 0}, 20003.931, 0.01},
		{"London to New York", Coordinate{51.5074, -0.1278}, Coordinate{40.7128, -74.0060}, 5585.23, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(d-tt.want) > tt.tol {
				t.Errorf("got %.4f km, want %.4f ± %.2f", d, tt.want, tt.tol)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Coordinate{
		{rome, paris},
		{{-33.8688, 151.2093}, {35.6762, 139.6503}},
		{{89.9, 0}, {-89.9, 179.9}},
		{{0, -179.9}, {0, 179.9}},
	}
	for _, p := range pairs {
		ab, err := Distance(p[0], p[1])
		if err != nil {
			t.Fatalf("Distance(%v, %v): %v", p[0], p[1], err)
		}
		ba, err := Distance(p[1], p[0])
		if err != nil {
			t.Fatalf("Distance(%v, %v): %v", p[1], p[0], err)
		}
		if ab != ba {
			t.Errorf("asymmetric: %v -> %v = %v, reverse = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestDistance_SymmetricRandomPairs(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10_000 {
		a := Coordinate{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		b := Coordinate{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		ab, _ := Distance(a, b)
		ba, _ := Distance(b, a)
		if ab != ba {
			t.Fatalf("asymmetric: %v -> %v = %v, reverse = %v", a, b, ab, ba)
		}
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	for _, c := range []Coordinate{rome, {90, 0}, {-90, 180}, {0, 0}} {
		d, err := Distance(c, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != 0 {
			t.Errorf("Distance(%v, %v) = %f, want 0", c, c, d)
		}
	}
}

func TestDistance_Antipodal(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		min, max float64
	}{
		// на экваторе кратчайший путь идёт через полюс: половина меридиана
		{"equator antipodes", Coordinate{0, 0}, Coordinate{0, 180}, 20003.930, 20003.932},
		{"nearly antipodal", Coordinate{0, 0}, Coordinate{0.5, 179.7}, 19_900, 20_004},
		{"mid latitude antipodes", Coordinate{10, 20}, Coordinate{-10, -160}, 20_003.9, 20_037.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.IsNaN(d) || d < tt.min || d > tt.max {
				t.Errorf("got %.4f km, want within [%.3f, %.3f]", d, tt.min, tt.max)
			}
		})
	}
}

func TestDistance_InvalidCoordinate(t *testing.T) {
	bad := []Coordinate{
		{91, 0}, {-90.0001, 0}, {0, 180.5}, {0, -181}, {math.NaN(), 0}, {0, math.NaN()},
	}
	for _, c := range bad {
		if _, err := Distance(c, rome); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Errorf("Distance(%v, rome) err = %v, want ErrInvalidCoordinate", c, err)
		}
		if _, err := Distance(rome, c); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Errorf("Distance(rome, %v) err = %v, want ErrInvalidCoordinate", c, err)
		}
	}
}
