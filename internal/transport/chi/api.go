package chi

import (
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrorCode is the machine-readable error code returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeInvalidQuery        ErrorCode = "invalid_query"
	CodeInvalidArgument     ErrorCode = "invalid_argument"
	CodeInvalidCoordinate   ErrorCode = "invalid_coordinate"
	CodeLocationUnavailable ErrorCode = "location_unavailable"
	CodeNotFound            ErrorCode = "discount_not_found"
	CodeRetailerNotFound    ErrorCode = "retailer_not_found"
	CodeAlreadyExists       ErrorCode = "discount_already_exists"
	CodeEmbeddingFailed     ErrorCode = "embedding_failed"
	CodeDimensionMismatch   ErrorCode = "vector_dimension_mismatch"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NearbyParams are the query parameters of GET /v1/discounts/nearby.
type NearbyParams struct {
	Lat         *float64 `form:"lat"`
	Lon         *float64 `form:"lon"`
	MaxDistance *float64 `form:"max_distance"` // kilometres
}

// SearchParams are the query parameters of GET /v1/discounts/search.
type SearchParams struct {
	Q    *string `form:"q"`
	TopK *int    `form:"top_k"`
}

// ListParams are the query parameters of GET /v1/discounts.
type ListParams struct {
	Cursor *string `form:"cursor"`
	Limit  *int    `form:"limit"`
}

// DiscoverRequest is the body of POST /v1/discounts/discover.
// Proximity: lat+lon or near_me (client IP). Semantic: query.
type DiscoverRequest struct {
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	NearMe        bool     `json:"near_me,omitempty"`
	MaxDistanceKm *float64 `json:"max_distance_km,omitempty"`
	Query         *string  `json:"query,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
}

// RetailerRequest is the retailer part of CreateDiscountRequest.
type RetailerRequest struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	ContactInfo string   `json:"contact_info,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// CreateDiscountRequest is the body of POST /v1/discounts.
type CreateDiscountRequest struct {
	ID          string          `json:"id,omitempty"`
	Retailer    RetailerRequest `json:"retailer"`
	Description string          `json:"description"`
	Code        string          `json:"code"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Lat         *float64        `json:"lat,omitempty"`
	Lon         *float64        `json:"lon,omitempty"`
}

// RetailerResponse describes the shop behind a discount.
type RetailerResponse struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	ContactInfo string            `json:"contact_info,omitempty"`
	Location    *geojson.Geometry `json:"location,omitempty"`
}

// RetailerSummaryResponse is a retailer derived from the catalog.
// Key addresses GET /v1/retailers/{id}: the retailer id, or its name when the id is empty.
type RetailerSummaryResponse struct {
	RetailerResponse
	Key           string `json:"key"`
	DiscountCount int    `json:"discount_count"`
}

// RetailerListResponse is the body of GET /v1/retailers.
type RetailerListResponse struct {
	Items []RetailerSummaryResponse `json:"items"`
	Total int                       `json:"total"`
}

// DiscountResponse is a discount record. Locations are GeoJSON points.
type DiscountResponse struct {
	ID          string            `json:"id"`
	VectorID    string            `json:"vector_id,omitempty"`
	Retailer    RetailerResponse  `json:"retailer"`
	Description string            `json:"description"`
	Code        string            `json:"code"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Expired     bool              `json:"expired"`
	Location    *geojson.Geometry `json:"location,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DiscountListResponse is a page of discounts.
type DiscountListResponse struct {
	Items      []DiscountResponse `json:"items"`
	HasMore    bool               `json:"has_more"`
	NextCursor *string            `json:"next_cursor,omitempty"`
}

// RankedDiscount is one discovery hit. Score is kilometres in proximity
// mode and embedding distance in semantic mode; lower is better.
type RankedDiscount struct {
	Rank     int              `json:"rank"`
	Score    float64          `json:"score"`
	Discount DiscountResponse `json:"discount"`
}

// DiscoveryResponse is the body of every discovery endpoint.
type DiscoveryResponse struct {
	Mode  string           `json:"mode"`
	Items []RankedDiscount `json:"items"`
	Total int              `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
