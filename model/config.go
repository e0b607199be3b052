package model

import (
	"errors"
	"fmt"

	"github.com/siherrmann/hypergrapher/helper"
)

const (
	DefaultChunkSize       = 500
	DefaultChunkOverlap    = 50
	DefaultVectorDimension = 384
)

// QueryConfig represents configuration for a local search query
type QueryConfig struct {
	TopN    int `json:"top_n" yaml:"top_n"`
	MaxHops int `json:"max_hops" yaml:"max_hops"`
	// MaxHopsLimit is the largest accepted MaxHops.
	MaxHopsLimit int `json:"max_hops_limit" yaml:"max_hops_limit"`
	// TraversalLimit caps the entities returned per traversal.
	TraversalLimit    int  `json:"traversal_limit" yaml:"traversal_limit"`
	HyperedgeLimit    int  `json:"hyperedge_limit" yaml:"hyperedge_limit"`
	MaxExpandedChunks int  `json:"max_expanded_chunks" yaml:"max_expanded_chunks"`
	// IncludeEntitySeeds adds entities found by entity vector search to the frontier.
	IncludeEntitySeeds bool `json:"include_entity_seeds" yaml:"include_entity_seeds"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopN:               5,
		MaxHops:            2,
		MaxHopsLimit:       5,
		TraversalLimit:     50,
		HyperedgeLimit:     100,
		MaxExpandedChunks:  20,
		IncludeEntitySeeds: false,
	}
}

func (c *QueryConfig) Validate() error {
	if c.TopN <= 0 {
		return helper.NewConfigError("top_n", fmt.Errorf("must be positive, got %d", c.TopN))
	}
	if c.MaxHopsLimit < 0 {
		return helper.NewConfigError("max_hops_limit", fmt.Errorf("must not be negative, got %d", c.MaxHopsLimit))
	}
	if c.MaxHops < 0 || c.MaxHops > c.MaxHopsLimit {
		return helper.NewConfigError("max_hops", fmt.Errorf("must be between 0 and %d, got %d", c.MaxHopsLimit, c.MaxHops))
	}
	if c.TraversalLimit <= 0 {
		return helper.NewConfigError("traversal_limit", fmt.Errorf("must be positive, got %d", c.TraversalLimit))
	}
	if c.HyperedgeLimit <= 0 {
		return helper.NewConfigError("hyperedge_limit", fmt.Errorf("must be positive, got %d", c.HyperedgeLimit))
	}
	if c.MaxExpandedChunks < 0 {
		return helper.NewConfigError("max_expanded_chunks", fmt.Errorf("must not be negative, got %d", c.MaxExpandedChunks))
	}
	return nil
}

// ExtractionPolicy decides what happens to a document when extraction of one of its chunks fails.
type ExtractionPolicy string

const (
	// ExtractionPolicySkip stores the chunk without graph data and flags it.
	ExtractionPolicySkip ExtractionPolicy = "skip"
	// ExtractionPolicyAbort abandons the whole document.
	ExtractionPolicyAbort ExtractionPolicy = "abort"
)

// IngestConfig represents configuration for an ingestion run
type IngestConfig struct {
	ChunkSize          int              `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap       int              `json:"chunk_overlap" yaml:"chunk_overlap"`
	BatchSize          int              `json:"batch_size" yaml:"batch_size"`
	MaxConcurrentTasks int              `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	RequestsPerSecond  float64          `json:"requests_per_second" yaml:"requests_per_second"`
	ExtractionPolicy   ExtractionPolicy `json:"extraction_policy" yaml:"extraction_policy"`
	EmbedEntities      bool             `json:"embed_entities" yaml:"embed_entities"`
}

// DefaultIngestConfig returns a sensible default configuration
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:          DefaultChunkSize,
		ChunkOverlap:       DefaultChunkOverlap,
		BatchSize:          32,
		MaxConcurrentTasks: 4,
		RequestsPerSecond:  0,
		ExtractionPolicy:   ExtractionPolicySkip,
		EmbedEntities:      true,
	}
}

func (c *IngestConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return helper.NewConfigError("chunk_size", fmt.Errorf("must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return helper.NewConfigError("chunk_overlap", fmt.Errorf("must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap))
	}
	if c.BatchSize <= 0 {
		return helper.NewConfigError("batch_size", fmt.Errorf("must be positive, got %d", c.BatchSize))
	}
	if c.MaxConcurrentTasks <= 0 {
		return helper.NewConfigError("max_concurrent_tasks", fmt.Errorf("must be positive, got %d", c.MaxConcurrentTasks))
	}
	if c.RequestsPerSecond < 0 {
		return helper.NewConfigError("requests_per_second", errors.New("must not be negative"))
	}
	switch c.ExtractionPolicy {
	case ExtractionPolicySkip, ExtractionPolicyAbort:
	default:
		return helper.NewConfigError("extraction_policy", fmt.Errorf("unknown policy %q", c.ExtractionPolicy))
	}
	return nil
}
