package model

import (
	"testing"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultQueryConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultQueryConfig()

		assert.Equal(t, 5, config.TopN, "Default TopN should be 5")
		assert.Equal(t, 2, config.MaxHops, "Default MaxHops should be 2")
		assert.Equal(t, 50, config.TraversalLimit, "Default TraversalLimit should be 50")
		assert.Equal(t, 100, config.HyperedgeLimit, "Default HyperedgeLimit should be 100")
		assert.NoError(t, config.Validate(), "Default config should be valid")
	})

	t.Run("Invalid call Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(c *QueryConfig)
			key    string
		}{
			{"zero top n", func(c *QueryConfig) { c.TopN = 0 }, "top_n"},
			{"negative max hops", func(c *QueryConfig) { c.MaxHops = -1 }, "max_hops"},
			{"max hops above limit", func(c *QueryConfig) { c.MaxHops = c.MaxHopsLimit + 1 }, "max_hops"},
			{"zero traversal limit", func(c *QueryConfig) { c.TraversalLimit = 0 }, "traversal_limit"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultQueryConfig()
				tt.modify(&config)
				err := config.Validate()
				assert.ErrorIs(t, err, helper.ErrConfig)
				assert.Contains(t, err.Error(), tt.key)
			})
		}
	})
}

func TestDefaultIngestConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultIngestConfig()

		assert.Equal(t, 500, config.ChunkSize)
		assert.Equal(t, 50, config.ChunkOverlap)
		assert.Equal(t, ExtractionPolicySkip, config.ExtractionPolicy)
		assert.NoError(t, config.Validate())
	})

	t.Run("Invalid call Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(c *IngestConfig)
			key    string
		}{
			{"zero chunk size", func(c *IngestConfig) { c.ChunkSize = 0 }, "chunk_size"},
			{"overlap equal to size", func(c *IngestConfig) { c.ChunkOverlap = c.ChunkSize }, "chunk_overlap"},
			{"negative overlap", func(c *IngestConfig) { c.ChunkOverlap = -1 }, "chunk_overlap"},
			{"zero batch size", func(c *IngestConfig) { c.BatchSize = 0 }, "batch_size"},
			{"zero concurrency", func(c *IngestConfig) { c.MaxConcurrentTasks = 0 }, "max_concurrent_tasks"},
			{"unknown policy", func(c *IngestConfig) { c.ExtractionPolicy = "retry" }, "extraction_policy"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultIngestConfig()
				tt.modify(&config)
				err := config.Validate()
				assert.ErrorIs(t, err, helper.ErrConfig)
				assert.Contains(t, err.Error(), tt.key)
			})
		}
	})
}
