package chi

import (
	"fmt"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	discoveryuc "github.com/kailas-cloud/dishpal/internal/usecase/discovery"
)

func retailerToResponse(rt discount.Retailer) RetailerResponse {
	return RetailerResponse{
		ID:          rt.ID,
		Name:        rt.Name,
		ContactInfo: rt.ContactInfo,
		Location:    pointToGeoJSON(rt.Location),
	}
}

func retailerSummaryToResponse(r discount.RetailerSummary) RetailerSummaryResponse {
	return RetailerSummaryResponse{
		RetailerResponse: retailerToResponse(r.Retailer),
		Key:              r.Key(),
		DiscountCount:    r.Discounts,
	}
}

func discountToResponse(d *discount.Discount, now time.Time) DiscountResponse {
	return DiscountResponse{
		ID:          d.ID(),
		VectorID:    d.VectorID(),
		Retailer:    retailerToResponse(d.Retailer()),
		Description: d.Description(),
		Code:        d.Code(),
		ExpiresAt:   d.ExpiresAt(),
		Expired:     d.Expired(now),
		Location:    pointToGeoJSON(d.Location()),
		CreatedAt:   d.CreatedAt(),
	}
}

func hitToResponse(h *discoveryuc.Hit, now time.Time) RankedDiscount {
	return RankedDiscount{
		Rank:     h.Result.Rank(),
		Score:    h.Result.Score(),
		Discount: discountToResponse(&h.Discount, now),
	}
}

// pointToGeoJSON returns nil for a missing location. Stored coordinates are
// validated on ingest, so an encode failure drops the field.
func pointToGeoJSON(c *geo.Coordinate) *geojson.Geometry {
	if c == nil {
		return nil
	}
	g, err := c.GeoJSON()
	if err != nil {
		return nil
	}
	return g
}

func coordinateFromRequest(field string, lat, lon *float64) (*geo.Coordinate, error) {
	switch {
	case lat == nil && lon == nil:
		return nil, nil
	case lat == nil || lon == nil:
		return nil, fmt.Errorf("%s: lat and lon must be given together", field)
	}
	return &geo.Coordinate{Lat: *lat, Lon: *lon}, nil
}

func paramsFromRequest(req *CreateDiscountRequest) (discount.Params, error) {
	loc, err := coordinateFromRequest("location", req.Lat, req.Lon)
	if err != nil {
		return discount.Params{}, err
	}
	retailerLoc, err := coordinateFromRequest("retailer", req.Retailer.Lat, req.Retailer.Lon)
	if err != nil {
		return discount.Params{}, err
	}
	return discount.Params{
		ID: req.ID,
		Retailer: discount.Retailer{
			ID:          req.Retailer.ID,
			Name:        req.Retailer.Name,
			ContactInfo: req.Retailer.ContactInfo,
			Location:    retailerLoc,
		},
		Description: req.Description,
		Code:        req.Code,
		ExpiresAt:   req.ExpiresAt,
		Location:    loc,
	}, nil
}
