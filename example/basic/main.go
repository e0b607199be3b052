package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/hypergrapher"
	"github.com/siherrmann/hypergrapher/core/pipeline"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

const sampleContent = `Marie Curie and Pierre Curie shared the 1903 Nobel Prize in Physics with Henri Becquerel
for their research on radiation. Marie Curie later won the 1911 Nobel Prize in Chemistry
for the discovery of polonium and radium.

Polonium was named after Poland, the country where Marie Curie was born.
Irene Joliot-Curie, the daughter of Marie and Pierre, won the 1935 Nobel Prize in Chemistry
together with Frederic Joliot.`

func main() {
	ctx := context.Background()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required for entity extraction")
	}

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	embedder, err := pipeline.NewHugotEmbedder("")
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	extract, err := pipeline.NewLLMExtractor(openai.NewClient(apiKey), pipeline.DefaultExtractorConfig())
	if err != nil {
		log.Fatalf("Failed to create extractor: %v", err)
	}

	h, err := hypergrapher.NewWithPostgres(dbConfig, embedder, extract, nil)
	if err != nil {
		log.Fatalf("Failed to create hypergrapher: %v", err)
	}
	defer h.Close()

	fmt.Println("Ingesting document...")
	summary, err := h.Insert(ctx, []*model.Document{{
		Title:   "The Curie family",
		Source:  "basic_example",
		Content: sampleContent,
		Metadata: model.Metadata{
			"topic": "nobel prizes",
		},
	}}, nil)
	if err != nil {
		log.Fatalf("Failed to insert document: %v", err)
	}
	fmt.Printf("Stored %d chunks, %d entities and %d facts\n", summary.ChunksStored, summary.EntitiesUpserted, summary.HyperedgesUpserted)

	queryText := "Which prizes did the daughter of Marie Curie win?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	result, err := h.QueryLocal(ctx, queryText, 3, 2)
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}

	for i, hit := range result.TopChunks {
		fmt.Printf("\n--- Chunk %d (score %.4f) ---\n%s\n", i+1, hit.Score, hit.Content)
	}
	fmt.Println("\nFacts:")
	for _, edge := range result.Hyperedges {
		fmt.Printf("  - %s %v\n", edge.Content, edge.Entities)
	}
	fmt.Printf("\nExpanded %d chunks over entities %v\n", result.TotalExpandedChunks, result.EntitiesFound)
}
