package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// ExtractorConfig configures the LLM extractor.
type ExtractorConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds a single extraction request. Zero disables it.
	Timeout time.Duration
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0,
		MaxTokens:   4096,
		Timeout:     60 * time.Second,
	}
}

// extractionPayload is the strict wire schema the LLM must answer with.
type extractionPayload struct {
	Entities []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"entities"`
	Hyperedges []struct {
		EntityNames []string `json:"entity_names"`
		Content     string   `json:"content"`
	} `json:"hyperedges"`
}

// NewLLMExtractor creates an ExtractFunc backed by an OpenAI compatible chat
// completion API using the JSON response format.
func NewLLMExtractor(client ChatCompleter, config ExtractorConfig) (ExtractFunc, error) {
	if client == nil {
		return nil, helper.NewConfigError("extractor", errors.New("client is nil"))
	}
	if config.Model == "" {
		config.Model = DefaultExtractorConfig().Model
	}

	return func(ctx context.Context, text string) (*model.Extraction, error) {
		if config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.Timeout)
			defer cancel()
		}

		systemPrompt, userPrompt := GraphExtractionPrompt(text)
		req := openai.ChatCompletionRequest{
			Model: config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: config.Temperature,
			MaxTokens:   config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		}

		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, helper.NewError("chat completion", err)
		}
		if len(resp.Choices) == 0 {
			return nil, helper.NewError("chat completion", errors.New("no choices returned"))
		}

		return ParseExtraction(resp.Choices[0].Message.Content)
	}, nil
}

// ParseExtraction decodes and validates an LLM answer. Malformed JSON is
// repaired first; schema violations are returned as extraction errors.
func ParseExtraction(content string) (*model.Extraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return nil, helper.NewExtractionError("", fmt.Errorf("invalid JSON: %w", err))
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, helper.NewExtractionError("", fmt.Errorf("invalid JSON after repair: %w", err))
		}
	}

	extraction := &model.Extraction{
		Entities:   make([]*model.Entity, 0, len(payload.Entities)),
		Hyperedges: make([]*model.Hyperedge, 0, len(payload.Hyperedges)),
	}
	for _, e := range payload.Entities {
		extraction.Entities = append(extraction.Entities, model.NewEntity(e.Name, e.Type, e.Description))
	}
	for _, h := range payload.Hyperedges {
		extraction.Hyperedges = append(extraction.Hyperedges, &model.Hyperedge{EntityNames: h.EntityNames, Content: h.Content})
	}

	if err := extraction.Validate(); err != nil {
		return nil, helper.NewExtractionError("", err)
	}
	return extraction, nil
}
