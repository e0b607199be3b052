package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/hypergrapher/helper"
)

var chunkNamespace = uuid.MustParse("0b7e5c3a-1d2f-4e6a-8b9c-2d3e4f5a6b7c")

// Chunk is a contiguous window of a source document.
type Chunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"embedding,omitempty"`
	// Entities holds the names of entities mentioned in the chunk.
	Entities  []string  `json:"entities,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkID derives a chunk ID from its content and character offsets.
func ChunkID(content string, start int, end int) string {
	return uuid.NewMD5(chunkNamespace, []byte(fmt.Sprintf("%s_%d_%d", content, start, end))).String()
}

// Clone returns a deep copy of c.
func (c *Chunk) Clone() *Chunk {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Embedding = append([]float32(nil), c.Embedding...)
	cp.Entities = append([]string(nil), c.Entities...)
	cp.Metadata.Extra = c.Metadata.Extra.Clone()
	return &cp
}

const (
	MetadataKeyDocumentIndex    = "document_index"
	MetadataKeyChunkIndex       = "chunk_index"
	MetadataKeyStartIdx         = "start_idx"
	MetadataKeyEndIdx           = "end_idx"
	MetadataKeySource           = "source"
	MetadataKeyCategory         = "category"
	MetadataKeyCreatedAt        = "created_at"
	MetadataKeyExtractionFailed = "extraction_failed"
	MetadataKeyExtractionError  = "extraction_error"
)

var reservedMetadataKeys = []string{
	MetadataKeyDocumentIndex,
	MetadataKeyChunkIndex,
	MetadataKeyStartIdx,
	MetadataKeyEndIdx,
	MetadataKeyCreatedAt,
	MetadataKeyExtractionFailed,
	MetadataKeyExtractionError,
}

// ChunkMetadata holds the known chunk fields plus free-form Extra keys.
// In JSON the Extra keys are flattened into the same object.
type ChunkMetadata struct {
	DocumentIndex    int
	ChunkIndex       int
	StartIdx         int
	EndIdx           int
	Source           string
	Category         string
	CreatedAt        time.Time
	ExtractionFailed bool
	ExtractionError  string
	Extra            Metadata
}

// NewChunkMetadata validates user supplied document metadata. Reserved keys are
// rejected, source and category must be strings, everything else goes to Extra.
func NewChunkMetadata(doc Metadata) (ChunkMetadata, error) {
	meta := ChunkMetadata{}
	for _, key := range reservedMetadataKeys {
		if _, ok := doc[key]; ok {
			return meta, helper.NewConfigError("metadata."+key, errors.New("reserved metadata key"))
		}
	}

	for k, v := range doc {
		switch k {
		case MetadataKeySource, MetadataKeyCategory:
			s, ok := v.(string)
			if !ok {
				return meta, helper.NewConfigError("metadata."+k, fmt.Errorf("expected string, got %T", v))
			}
			if k == MetadataKeySource {
				meta.Source = s
			} else {
				meta.Category = s
			}
		default:
			if meta.Extra == nil {
				meta.Extra = Metadata{}
			}
			meta.Extra[k] = v
		}
	}
	return meta, nil
}

func (m ChunkMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+9)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[MetadataKeyDocumentIndex] = m.DocumentIndex
	out[MetadataKeyChunkIndex] = m.ChunkIndex
	out[MetadataKeyStartIdx] = m.StartIdx
	out[MetadataKeyEndIdx] = m.EndIdx
	if m.Source != "" {
		out[MetadataKeySource] = m.Source
	}
	if m.Category != "" {
		out[MetadataKeyCategory] = m.Category
	}
	if !m.CreatedAt.IsZero() {
		out[MetadataKeyCreatedAt] = m.CreatedAt
	}
	if m.ExtractionFailed {
		out[MetadataKeyExtractionFailed] = true
	}
	if m.ExtractionError != "" {
		out[MetadataKeyExtractionError] = m.ExtractionError
	}
	return json.Marshal(out)
}

func (m *ChunkMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = ChunkMetadata{}
	known := map[string]interface{}{
		MetadataKeyDocumentIndex:    &m.DocumentIndex,
		MetadataKeyChunkIndex:       &m.ChunkIndex,
		MetadataKeyStartIdx:         &m.StartIdx,
		MetadataKeyEndIdx:           &m.EndIdx,
		MetadataKeySource:           &m.Source,
		MetadataKeyCategory:         &m.Category,
		MetadataKeyCreatedAt:        &m.CreatedAt,
		MetadataKeyExtractionFailed: &m.ExtractionFailed,
		MetadataKeyExtractionError:  &m.ExtractionError,
	}

	for k, v := range raw {
		if target, ok := known[k]; ok {
			if err := json.Unmarshal(v, target); err != nil {
				return helper.NewError("unmarshal chunk metadata "+k, err)
			}
			continue
		}
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		if m.Extra == nil {
			m.Extra = Metadata{}
		}
		m.Extra[k] = value
	}
	return nil
}

// Value implements the driver.Valuer interface for database storage
func (m ChunkMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *ChunkMetadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = ChunkMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}
}

// ChunkLink associates a chunk with the entities it mentions.
type ChunkLink struct {
	ChunkID     string   `json:"chunk_id"`
	EntityNames []string `json:"entity_names"`
}
