package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, ChunkID("hello", 0, 5), ChunkID("hello", 0, 5))
	assert.NotEqual(t, ChunkID("hello", 0, 5), ChunkID("hello", 10, 15), "Expected offsets to be part of the identity")
}

func TestChunkMetadataJSON(t *testing.T) {
	t.Run("Extra keys are flattened", func(t *testing.T) {
		meta := ChunkMetadata{
			DocumentIndex: 1,
			ChunkIndex:    2,
			StartIdx:      450,
			EndIdx:        950,
			Source:        "wiki",
			Extra:         Metadata{"lang": "en"},
		}

		b, err := json.Marshal(meta)
		require.NoError(t, err)

		var flat map[string]interface{}
		require.NoError(t, json.Unmarshal(b, &flat))
		assert.Equal(t, "en", flat["lang"])
		assert.Equal(t, float64(450), flat["start_idx"])
		assert.NotContains(t, flat, "extraction_failed", "Expected false flags to be omitted")

		var decoded ChunkMetadata
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, meta, decoded)
	})

	t.Run("Known fields win over extra keys", func(t *testing.T) {
		meta := ChunkMetadata{ChunkIndex: 4, Extra: Metadata{"chunk_index": 99}}
		b, err := json.Marshal(meta)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"chunk_index":4`)
	})
}
