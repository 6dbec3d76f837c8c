package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the settings used when the config file names no vectorizer.
// 384 matches all-MiniLM-L6-v2, the model discount descriptions were first embedded with.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "all-MiniLM-L6-v2",
		Dimensions:     384,
		DistanceMetric: "l2",
		Algorithm:      "hnsw",
	}
}
