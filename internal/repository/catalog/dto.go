package catalog

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
)

// discountDTO is the stored JSON shape. Locations are WKT in SRID 4326.
type discountDTO struct {
	ID          string      `json:"id"`
	VectorID    string      `json:"vector_id,omitempty"`
	Seq         int64       `json:"seq"`
	Retailer    retailerDTO `json:"retailer"`
	Description string      `json:"description"`
	Code        string      `json:"code"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	Location    string      `json:"location,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type retailerDTO struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info,omitempty"`
	Location    string `json:"location,omitempty"`
}

func toDTO(d *discount.Discount, seq int64) (discountDTO, error) {
	loc, err := encodeLocation(d.Location())
	if err != nil {
		return discountDTO{}, err
	}
	r := d.Retailer()
	rloc, err := encodeLocation(r.Location)
	if err != nil {
		return discountDTO{}, err
	}
	dto := discountDTO{
		ID:          d.ID(),
		VectorID:    d.VectorID(),
		Seq:         seq,
		Retailer:    retailerDTO{ID: r.ID, Name: r.Name, ContactInfo: r.ContactInfo, Location: rloc},
		Description: d.Description(),
		Code:        d.Code(),
		Location:    loc,
		CreatedAt:   d.CreatedAt(),
	}
	if exp := d.ExpiresAt(); !exp.IsZero() {
		dto.ExpiresAt = &exp
	}
	return dto, nil
}

func fromDTO(dto *discountDTO) (discount.Discount, error) {
	loc, err := decodeLocation(dto.Location)
	if err != nil {
		return discount.Discount{}, fmt.Errorf("discount %s location: %w", dto.ID, err)
	}
	rloc, err := decodeLocation(dto.Retailer.Location)
	if err != nil {
		return discount.Discount{}, fmt.Errorf("discount %s retailer location: %w", dto.ID, err)
	}
	p := discount.Params{
		ID:       dto.ID,
		VectorID: dto.VectorID,
		Retailer: discount.Retailer{
			ID:          dto.Retailer.ID,
			Name:        dto.Retailer.Name,
			ContactInfo: dto.Retailer.ContactInfo,
			Location:    rloc,
		},
		Description: dto.Description,
		Code:        dto.Code,
		Location:    loc,
		CreatedAt:   dto.CreatedAt,
	}
	if dto.ExpiresAt != nil {
		p.ExpiresAt = *dto.ExpiresAt
	}
	return discount.Reconstruct(p), nil
}

func encodeLocation(c *geo.Coordinate) (string, error) {
	if c == nil {
		return "", nil
	}
	return c.WKT()
}

func decodeLocation(s string) (*geo.Coordinate, error) {
	if s == "" {
		return nil, nil
	}
	c, err := geo.ParseWKT(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
