package result

// Ranked is one hit of a discovery or vector search.
// Score is a distance: kilometres in proximity mode, Euclidean embedding
// distance in semantic mode. Lower is better.
type Ranked struct {
	id    string
	score float64
	rank  int
}

// New creates an unranked hit. Rank is assigned once the final order is known.
func New(id string, score float64) Ranked {
	return Ranked{id: id, score: score}
}

// ID returns the discount id (proximity) or vector id (semantic).
func (r Ranked) ID() string { return r.id }

// Score returns the distance.
func (r Ranked) Score() float64 { return r.score }

// Rank returns the 1-based position, 0 if not yet assigned.
func (r Ranked) Rank() int { return r.rank }

// Assign sets 1-based ranks in slice order.
func Assign(hits []Ranked) {
	for i := range hits {
		hits[i].rank = i + 1
	}
}
