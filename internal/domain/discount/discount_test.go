package discount

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

func validParams() Params {
	return Params{
		ID:          "d-1",
		VectorID:    "v-1",
		Retailer:    Retailer{ID: "r-1", Name: "Trattoria", Location: &geo.Coordinate{Lat: 41.9, Lon: 12.5}},
		Description: "  20% off pasta  ",
		Code:        "PASTA20",
	}
}

func TestNew_Valid(t *testing.T) {
	d, err := New(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Description() != "20% off pasta" {
		t.Errorf("Description() = %q", d.Description())
	}
	if d.Location() == nil || d.Location().Lat != 41.9 {
		t.Errorf("Location() = %v, want retailer location", d.Location())
	}
	if d.VectorID() != "v-1" || d.Code() != "PASTA20" {
		t.Errorf("unexpected fields: %q %q", d.VectorID(), d.Code())
	}
}

func TestNew_OwnLocationWins(t *testing.T) {
	p := validParams()
	p.Location = &geo.Coordinate{Lat: 45.46, Lon: 9.19}
	d, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Location().Lat != 45.46 {
		t.Errorf("Location() = %v", d.Location())
	}
	p.Location.Lat = 0
	if d.Location().Lat != 45.46 {
		t.Error("Location must be copied")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"no id", func(p *Params) { p.ID = "" }, ErrInvalid},
		{"blank description", func(p *Params) { p.Description = "   " }, ErrInvalid},
		{"huge description", func(p *Params) { p.Description = strings.Repeat("x", MaxDescriptionLength+1) }, ErrInvalid},
		{"no code", func(p *Params) { p.Code = "" }, ErrInvalid},
		{"long code", func(p *Params) { p.Code = strings.Repeat("C", MaxCodeLength+1) }, ErrInvalid},
		{"no retailer", func(p *Params) { p.Retailer.Name = "" }, ErrInvalid},
		{"bad location", func(p *Params) { p.Location = &geo.Coordinate{Lat: 100} }, domain.ErrInvalidCoordinate},
		{"bad retailer location", func(p *Params) { p.Retailer.Location = &geo.Coordinate{Lon: 200} }, domain.ErrInvalidCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			if _, err := New(p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Reconstruct(Params{ID: "x"})
	if d.Expired(now) {
		t.Error("open-ended discount reported expired")
	}
	d = Reconstruct(Params{ID: "x", ExpiresAt: now})
	if !d.Expired(now) {
		t.Error("discount expiring now should be expired")
	}
	if d.Expired(now.Add(-time.Second)) {
		t.Error("discount expired before its expiry")
	}
}
