package pipeline

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/hypergrapher/model"
)

// ChunkFunc splits text into chunks with offsets and per-document chunk indexes.
type ChunkFunc func(text string) ([]*model.Chunk, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Embedder turns text into fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ExtractFunc extracts entities and hyperedges from the text of one chunk.
// Implementations must be stateless per call.
type ExtractFunc func(ctx context.Context, text string) (*model.Extraction, error)

// ChatCompleter is the LLM capability used by the extractor. *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// EmbeddingCreator is the embeddings capability of an OpenAI compatible API.
type EmbeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// funcEmbedder adapts an EmbedFunc to Embedder.
type funcEmbedder struct {
	embed      EmbedFunc
	dimensions int
}

// NewFuncEmbedder adapts a single-text EmbedFunc. EmbedBatch calls it once per text.
func NewFuncEmbedder(embed EmbedFunc, dimensions int) Embedder {
	return &funcEmbedder{embed: embed, dimensions: dimensions}
}

func (f *funcEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embed(ctx, text)
}

func (f *funcEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := f.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vector)
	}
	return out, nil
}

func (f *funcEmbedder) Dimensions() int {
	return f.dimensions
}
