package mode

// Mode is the retrieval strategy a discovery query resolves to.
type Mode string

// Discovery modes.
const (
	// Proximity ranks located discounts by geodesic distance from the client.
	Proximity Mode = "proximity"
	// Semantic ranks discounts by embedding distance to free text.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Proximity || m == Semantic
}
