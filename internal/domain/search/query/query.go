package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/mode"
)

// DefaultTopK is used when a text query omits top_k.
const DefaultTopK = 10

// Input is the raw, unvalidated request. Proximity is requested by Coordinate
// or ClientIP, semantic by Text; exactly one of the two groups must be set.
type Input struct {
	Coordinate    *geo.Coordinate
	ClientIP      string
	MaxDistanceKm *float64
	Text          *string
	TopK          *int
}

// Query is a validated discovery request in exactly one mode.
type Query struct {
	mode          mode.Mode
	coordinate    *geo.Coordinate
	clientIP      string
	maxDistanceKm *float64
	text          string
	topK          int
}

// Parse resolves the mode of in and validates it.
// Neither or both groups set → ErrInvalidQuery.
func Parse(in Input) (Query, error) {
	proximity := in.Coordinate != nil || in.ClientIP != ""
	semantic := in.Text != nil
	switch {
	case proximity && semantic:
		return Query{}, fmt.Errorf("%w: location and text are mutually exclusive", domain.ErrInvalidQuery)
	case proximity:
		if in.TopK != nil {
			return Query{}, fmt.Errorf("%w: top_k applies to text search only", domain.ErrInvalidQuery)
		}
		return NewProximity(in.Coordinate, in.ClientIP, in.MaxDistanceKm)
	case semantic:
		if in.MaxDistanceKm != nil {
			return Query{}, fmt.Errorf("%w: max distance applies to location search only", domain.ErrInvalidQuery)
		}
		return NewSemantic(*in.Text, in.TopK)
	default:
		return Query{}, fmt.Errorf("%w: either a location or a text is required", domain.ErrInvalidQuery)
	}
}

// NewProximity builds a proximity query. A supplied coordinate takes
// precedence over the client IP.
func NewProximity(coord *geo.Coordinate, clientIP string, maxDistanceKm *float64) (Query, error) {
	if coord == nil && clientIP == "" {
		return Query{}, fmt.Errorf("%w: coordinate or client ip is required", domain.ErrInvalidQuery)
	}
	q := Query{mode: mode.Proximity, clientIP: clientIP}
	if coord != nil {
		if err := coord.Validate(); err != nil {
			return Query{}, err
		}
		c := *coord
		q.coordinate = &c
	}
	if maxDistanceKm != nil {
		d := *maxDistanceKm
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return Query{}, fmt.Errorf("%w: max distance must be a non-negative number of kilometres", domain.ErrInvalidArgument)
		}
		q.maxDistanceKm = &d
	}
	return q, nil
}

// NewSemantic builds a text query. topK nil means DefaultTopK.
func NewSemantic(text string, topK *int) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: text must not be empty", domain.ErrInvalidQuery)
	}
	k := DefaultTopK
	if topK != nil {
		k = *topK
	}
	if k <= 0 {
		return Query{}, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	return Query{mode: mode.Semantic, text: text, topK: k}, nil
}

// Mode returns the resolved mode.
func (q Query) Mode() mode.Mode { return q.mode }

// Coordinate returns the supplied coordinate or nil.
func (q Query) Coordinate() *geo.Coordinate { return q.coordinate }

// ClientIP returns the IP used when no coordinate was supplied.
func (q Query) ClientIP() string { return q.clientIP }

// MaxDistanceKm returns the distance cut-off or nil for unbounded.
func (q Query) MaxDistanceKm() *float64 { return q.maxDistanceKm }

// Text returns the trimmed search text.
func (q Query) Text() string { return q.text }

// TopK returns the semantic result limit.
func (q Query) TopK() int { return q.topK }
