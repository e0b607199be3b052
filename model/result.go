package model

import "time"

// QueryResult is the answer to a local search.
type QueryResult struct {
	Query                string           `json:"query"`
	TopChunks            []*ChunkHit      `json:"top_chunks"`
	Hyperedges           []*HyperedgeHit  `json:"hyperedges"`
	ExpandedChunks       []*ExpandedChunk `json:"expanded_chunks"`
	EntitiesFound        []string         `json:"entities_found"`
	TotalChunksFound     int              `json:"total_chunks_found"`
	TotalHyperedgesFound int              `json:"total_hyperedges_found"`
	TotalExpandedChunks  int              `json:"total_expanded_chunks"`
	// Degraded is set when graph expansion failed and only seed results are returned.
	Degraded bool     `json:"degraded,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewQueryResult returns an empty, well-formed result.
func NewQueryResult(query string) *QueryResult {
	return &QueryResult{
		Query:          query,
		TopChunks:      []*ChunkHit{},
		Hyperedges:     []*HyperedgeHit{},
		ExpandedChunks: []*ExpandedChunk{},
		EntitiesFound:  []string{},
	}
}

// ChunkHit is a ranked chunk in a query result.
type ChunkHit struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Score    float64       `json:"score"`
	Entities []string      `json:"entities"`
	Metadata ChunkMetadata `json:"metadata"`
}

// HyperedgeHit is a fact collected during expansion.
type HyperedgeHit struct {
	ID       string   `json:"id"`
	Entities []string `json:"entities"`
	Content  string   `json:"content"`
}

// ExpandedChunk is a chunk reached through graph expansion rather than similarity.
type ExpandedChunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Entities []string      `json:"entities"`
	Via      string        `json:"via"`
	Distance int           `json:"distance"`
	Metadata ChunkMetadata `json:"metadata"`
}

// IngestionSummary reports the outcome of an ingestion run.
type IngestionSummary struct {
	Documents          int               `json:"documents"`
	DocumentsCommitted int               `json:"documents_committed"`
	ChunksStored       int               `json:"chunks_stored"`
	EntitiesUpserted   int               `json:"entities_upserted"`
	HyperedgesUpserted int               `json:"hyperedges_upserted"`
	FailedChunks       []ChunkFailure    `json:"failed_chunks,omitempty"`
	FailedDocuments    []DocumentFailure `json:"failed_documents,omitempty"`
	Warnings           []string          `json:"warnings,omitempty"`
	Duration           time.Duration     `json:"duration"`
}

// Stages at which a chunk can fail.
const (
	StageExtraction = "extraction"
	StageEmbedding  = "embedding"
	StageStore      = "store"
)

// ChunkFailure identifies a chunk that could not be fully ingested.
type ChunkFailure struct {
	ChunkID       string `json:"chunk_id"`
	DocumentIndex int    `json:"document_index"`
	ChunkIndex    int    `json:"chunk_index"`
	Stage         string `json:"stage"`
	Error         string `json:"error"`
}

// DocumentFailure identifies a document whose writes were abandoned.
type DocumentFailure struct {
	DocumentIndex int    `json:"document_index"`
	Title         string `json:"title,omitempty"`
	Error         string `json:"error"`
}
