package pipeline

import (
	"fmt"
	"strings"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// Chunk splits text into fixed-size overlapping windows. Sizes and offsets
// count characters (runes). Every window starts overlap characters before the
// end of the previous one and the last window ends at the end of the text.
// Windows containing only whitespace are dropped, ChunkIndex counts the
// emitted chunks. Content is kept verbatim so offsets address the source.
func Chunk(text string, size int, overlap int) ([]*model.Chunk, error) {
	if size <= 0 {
		return nil, helper.NewConfigError("chunk_size", fmt.Errorf("must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, helper.NewConfigError("chunk_overlap", fmt.Errorf("must be in [0, %d), got %d", size, overlap))
	}

	runes := []rune(text)
	n := len(runes)
	chunks := []*model.Chunk{}

	for start := 0; start < n; {
		end := start + size
		if end > n {
			end = n
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, &model.Chunk{
				ID:      model.ChunkID(content, start, end),
				Content: content,
				Metadata: model.ChunkMetadata{
					ChunkIndex: len(chunks),
					StartIdx:   start,
					EndIdx:     end,
				},
			})
		}

		if end == n {
			break
		}
		start = end - overlap
	}

	return chunks, nil
}

// FixedSizeChunker creates a chunker with a fixed window size and overlap.
func FixedSizeChunker(size int, overlap int) ChunkFunc {
	return func(text string) ([]*model.Chunk, error) {
		return Chunk(text, size, overlap)
	}
}
