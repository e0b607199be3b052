package model

// StoreHealth is the raw health information reported by a graph store.
type StoreHealth struct {
	Connected bool `json:"connected"`
	// Indexes maps vector index names to their dimension.
	Indexes map[string]int `json:"indexes"`
	Errors  []string       `json:"errors,omitempty"`
}

// HealthReport is the verdict over a store and the embedder.
type HealthReport struct {
	Healthy            bool         `json:"healthy"`
	Messages           []string     `json:"messages"`
	EmbedderDimensions int          `json:"embedder_dimensions"`
	Details            *StoreHealth `json:"details"`
}
