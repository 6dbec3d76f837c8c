package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

// Field limits.
const (
	MaxCodeLength        = 50
	MaxRetailerName      = 255
	MaxDescriptionLength = 4096
)

// ErrInvalid signals a discount that failed validation.
var ErrInvalid = errors.New("invalid discount")

// Retailer is the shop offering a discount.
type Retailer struct {
	ID          string
	Name        string
	ContactInfo string
	Location    *geo.Coordinate
}

// Params is the input to New.
type Params struct {
	ID          string
	VectorID    string
	Retailer    Retailer
	Description string
	Code        string
	ExpiresAt   time.Time
	Location    *geo.Coordinate
	CreatedAt   time.Time
}

// Discount is the catalog record the discovery engine ranks and returns.
type Discount struct {
	id          string
	vectorID    string
	retailer    Retailer
	description string
	code        string
	expiresAt   time.Time
	location    *geo.Coordinate
	createdAt   time.Time
}

// New validates p and creates a Discount. When p.Location is nil the
// retailer location is used; a discount with neither is never returned by
// proximity search.
func New(p Params) (Discount, error) {
	if p.ID == "" {
		return Discount{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return Discount{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if len(p.Description) > MaxDescriptionLength {
		return Discount{}, fmt.Errorf("%w: description too long (max %d bytes)", ErrInvalid, MaxDescriptionLength)
	}
	if p.Code == "" || len(p.Code) > MaxCodeLength {
		return Discount{}, fmt.Errorf("%w: code must be 1-%d characters", ErrInvalid, MaxCodeLength)
	}
	if p.Retailer.Name == "" || len(p.Retailer.Name) > MaxRetailerName {
		return Discount{}, fmt.Errorf("%w: retailer name must be 1-%d characters", ErrInvalid, MaxRetailerName)
	}
	if p.Retailer.Location != nil {
		if err := p.Retailer.Location.Validate(); err != nil {
			return Discount{}, fmt.Errorf("retailer location: %w", err)
		}
	}
	loc := p.Location
	if loc == nil {
		loc = p.Retailer.Location
	}
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return Discount{}, fmt.Errorf("location: %w", err)
		}
		c := *loc
		loc = &c
	}
	return Discount{
		id:          p.ID,
		vectorID:    p.VectorID,
		retailer:    p.Retailer,
		description: p.Description,
		code:        p.Code,
		expiresAt:   p.ExpiresAt,
		location:    loc,
		createdAt:   p.CreatedAt,
	}, nil
}

// Reconstruct creates a Discount without validation (storage hydration).
func Reconstruct(p Params) Discount {
	return Discount{
		id:          p.ID,
		vectorID:    p.VectorID,
		retailer:    p.Retailer,
		description: p.Description,
		code:        p.Code,
		expiresAt:   p.ExpiresAt,
		location:    p.Location,
		createdAt:   p.CreatedAt,
	}
}

// ID returns the catalog identifier.
func (d *Discount) ID() string { return d.id }

// VectorID returns the id of the description embedding in the vector index.
func (d *Discount) VectorID() string { return d.vectorID }

// Retailer returns the offering retailer.
func (d *Discount) Retailer() Retailer { return d.retailer }

// Description returns the discount text.
func (d *Discount) Description() string { return d.description }

// Code returns the redemption code.
func (d *Discount) Code() string { return d.code }

// ExpiresAt returns the expiry, zero if open-ended.
func (d *Discount) ExpiresAt() time.Time { return d.expiresAt }

// Location returns the discount location or nil.
func (d *Discount) Location() *geo.Coordinate { return d.location }

// CreatedAt returns the creation time.
func (d *Discount) CreatedAt() time.Time { return d.createdAt }

// Expired reports whether the discount has an expiry at or before now.
func (d *Discount) Expired(now time.Time) bool {
	return !d.expiresAt.IsZero() && !now.Before(d.expiresAt)
}
