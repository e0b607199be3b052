package model

// NodeClass selects which vector index a similarity search runs against.
type NodeClass string

const (
	NodeClassChunk  NodeClass = "chunk"
	NodeClassEntity NodeClass = "entity"
)

// ScoredChunk is a chunk returned by similarity search. Higher scores are closer.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// ScoredEntity is an entity returned by similarity search.
type ScoredEntity struct {
	Entity *Entity `json:"entity"`
	Score  float64 `json:"score"`
}

// EntityDistance is an entity reached by traversal and its hop distance from the seed.
type EntityDistance struct {
	Name     string `json:"name"`
	Distance int    `json:"distance"`
}
