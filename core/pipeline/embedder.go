package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder runs a sentence transformer locally through hugot.
type HugotEmbedder struct {
	session    *hugot.Session
	pipeline   *pipelines.FeatureExtractionPipeline
	dimensions int
}

// NewHugotEmbedder creates an embedder using a real sentence transformer model.
// An empty model name selects all-MiniLM-L6-v2 which produces 384-dimensional embeddings.
func NewHugotEmbedder(modelName string) (*HugotEmbedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewError("failed to create hugot session", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, helper.NewError("failed to create sentence pipeline", err)
	}

	e := &HugotEmbedder{session: session, pipeline: sentencePipeline}

	// Embed one sample so Dimensions is exact for the loaded model.
	sample, err := e.EmbedBatch(context.Background(), []string{"dimension check"})
	if err != nil {
		_ = session.Destroy()
		return nil, err
	}
	e.dimensions = len(sample[0])

	return e, nil
}

func (e *HugotEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *HugotEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, helper.NewEmbeddingError("embed batch", "", err)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, helper.NewEmbeddingError("embed batch", "", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, helper.NewEmbeddingError("embed batch", "", fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), len(texts)))
	}
	return result.Embeddings, nil
}

func (e *HugotEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the hugot session.
func (e *HugotEmbedder) Close() error {
	return e.session.Destroy()
}

// OpenAIEmbedder calls an OpenAI compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     EmbeddingCreator
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder requesting vectors of the given size.
func NewOpenAIEmbedder(client EmbeddingCreator, embeddingModel string, dimensions int) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, helper.NewConfigError("embedder", fmt.Errorf("client is nil"))
	}
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}
	if dimensions <= 0 {
		dimensions = model.DefaultVectorDimension
	}
	return &OpenAIEmbedder{
		client:     client,
		model:      openai.EmbeddingModel(embeddingModel),
		dimensions: dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, helper.NewEmbeddingError("create embeddings", string(e.model), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, helper.NewEmbeddingError("create embeddings", string(e.model), fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		index := d.Index
		if index < 0 || index >= len(out) {
			index = i
		}
		out[index] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// HashEmbedder is a deterministic bag-of-words embedder based on feature
// hashing. It needs no model and suits offline use and tests.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = model.DefaultVectorDimension
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, helper.NewEmbeddingError("embed", "", err)
	}

	vector := make([]float32, e.dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vector[int(sum%uint32(e.dimensions))] += sign
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vector)
	}
	return out, nil
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}
