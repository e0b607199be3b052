package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Ingestor turns documents into chunks, entities and hyperedges and writes them to a store.
//
// Embedding and extraction run concurrently, but writes are committed per
// document in input order and per chunk in text order, so the resulting graph
// does not depend on the degree of concurrency.
type Ingestor struct {
	store      graph.Store
	embedder   Embedder
	extract    ExtractFunc
	resilience ResilienceConfig
	logger     *slog.Logger
}

// NewIngestor creates an ingestor. The embedder and extractor are used as
// given; wrap them with NewResilientEmbedder/NewResilientExtractor as needed.
func NewIngestor(store graph.Store, embedder Embedder, extract ExtractFunc, resilience ResilienceConfig, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, helper.NewConfigError("graph_store", errors.New("store is nil"))
	}
	if embedder == nil {
		return nil, helper.NewConfigError("embedder", errors.New("embedder is nil"))
	}
	if extract == nil {
		return nil, helper.NewConfigError("extractor", errors.New("extractor is nil"))
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Ingestor{
		store:      store,
		embedder:   embedder,
		extract:    extract,
		resilience: resilience,
		logger:     logger,
	}, nil
}

// chunkTask is the unit of concurrent work.
type chunkTask struct {
	document   int
	chunk      *model.Chunk
	extraction *model.Extraction
	extractErr error
	embedErr   error
}

// documentBatch is everything one document commits.
type documentBatch struct {
	index      int
	title      string
	entities   []*model.Entity
	hyperedges []*model.Hyperedge
	chunks     []*model.Chunk
	links      []model.ChunkLink
	failures   []model.ChunkFailure
	abortErr   error
}

// Ingest ingests the documents. Configuration and metadata errors are returned
// before any work starts. Failures of single chunks or documents are reported
// in the summary; the returned error is only set when ctx ends the run.
func (in *Ingestor) Ingest(ctx context.Context, docs []*model.Document, config *model.IngestConfig) (*model.IngestionSummary, error) {
	start := time.Now()

	if config == nil {
		defaults := model.DefaultIngestConfig()
		config = &defaults
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	metas := make([]model.ChunkMetadata, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, helper.NewConfigError(fmt.Sprintf("documents[%d]", i), errors.New("document is nil"))
		}
		meta, err := doc.ChunkMetadata(i)
		if err != nil {
			return nil, err
		}
		metas[i] = meta
	}

	summary := &model.IngestionSummary{Documents: len(docs)}

	tasks, perDocument, err := in.chunkDocuments(docs, metas, config)
	if err != nil {
		return nil, err
	}

	limiter := newLimiter(config.RequestsPerSecond)
	if err := in.compute(ctx, tasks, config, limiter); err != nil {
		summary.Duration = time.Since(start)
		return summary, helper.NewError("ingest", err)
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, helper.NewError("ingest", err)
		}

		batch := in.assemble(i, doc, perDocument[i], config)
		summary.FailedChunks = append(summary.FailedChunks, batch.failures...)
		if batch.abortErr != nil {
			in.logger.Warn("Abandoning document", slog.Int("document_index", i), slog.String("error", batch.abortErr.Error()))
			summary.FailedDocuments = append(summary.FailedDocuments, model.DocumentFailure{DocumentIndex: i, Title: doc.Title, Error: batch.abortErr.Error()})
			continue
		}

		if config.EmbedEntities && len(batch.entities) > 0 {
			if err := in.embedEntities(ctx, batch.entities, config, limiter); err != nil {
				in.logger.Warn("Storing entities without embeddings", slog.Int("document_index", i), slog.String("error", err.Error()))
				summary.Warnings = append(summary.Warnings, fmt.Sprintf("document %d: entity embeddings failed: %v", i, err))
			}
		}

		if err := in.commit(ctx, batch, config); err != nil {
			in.logger.Error("Error committing document", slog.Int("document_index", i), slog.String("error", err.Error()))
			summary.FailedDocuments = append(summary.FailedDocuments, model.DocumentFailure{DocumentIndex: i, Title: doc.Title, Error: err.Error()})
			continue
		}

		summary.DocumentsCommitted++
		summary.ChunksStored += len(batch.chunks)
		summary.EntitiesUpserted += len(batch.entities)
		summary.HyperedgesUpserted += len(batch.hyperedges)
		in.logger.Info("Document ingested",
			slog.Int("document_index", i),
			slog.Int("chunks", len(batch.chunks)),
			slog.Int("entities", len(batch.entities)),
			slog.Int("hyperedges", len(batch.hyperedges)),
		)
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(requestsPerSecond))
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// chunkDocuments chunks every document and returns the flat task list plus the tasks per document.
func (in *Ingestor) chunkDocuments(docs []*model.Document, metas []model.ChunkMetadata, config *model.IngestConfig) ([]*chunkTask, [][]*chunkTask, error) {
	var tasks []*chunkTask
	perDocument := make([][]*chunkTask, len(docs))
	now := time.Now()

	for i, doc := range docs {
		chunks, err := Chunk(doc.Content, config.ChunkSize, config.ChunkOverlap)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range chunks {
			meta := metas[i]
			meta.Extra = metas[i].Extra.Clone()
			meta.ChunkIndex = c.Metadata.ChunkIndex
			meta.StartIdx = c.Metadata.StartIdx
			meta.EndIdx = c.Metadata.EndIdx
			meta.CreatedAt = now
			c.Metadata = meta
			c.CreatedAt = now

			task := &chunkTask{document: i, chunk: c}
			tasks = append(tasks, task)
			perDocument[i] = append(perDocument[i], task)
		}
	}
	return tasks, perDocument, nil
}

// compute runs extraction per chunk and embedding per batch with bounded concurrency.
// Only cancellation of ctx is returned as an error.
func (in *Ingestor) compute(ctx context.Context, tasks []*chunkTask, config *model.IngestConfig, limiter *rate.Limiter) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxConcurrentTasks)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := wait(gctx, limiter); err != nil {
				return err
			}
			extraction, err := in.extract(gctx, task.chunk.Content)
			if err != nil {
				task.extractErr = err
				return nil
			}
			task.extraction = extraction
			return nil
		})
	}

	for batchStart := 0; batchStart < len(tasks); batchStart += config.BatchSize {
		batch := tasks[batchStart:min(batchStart+config.BatchSize, len(tasks))]
		g.Go(func() error {
			if err := wait(gctx, limiter); err != nil {
				return err
			}
			in.embedChunks(gctx, batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// embedChunks embeds a batch of chunks, falling back to single calls when the
// batch fails so that one bad chunk does not take the others down.
func (in *Ingestor) embedChunks(ctx context.Context, batch []*chunkTask) {
	texts := make([]string, len(batch))
	for i, task := range batch {
		texts[i] = task.chunk.Content
	}

	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) == len(batch) {
		for i, task := range batch {
			task.chunk.Embedding = vectors[i]
		}
		return
	}

	for _, task := range batch {
		vector, err := in.embedder.Embed(ctx, task.chunk.Content)
		if err != nil {
			task.embedErr = err
			continue
		}
		task.chunk.Embedding = vector
	}
}

// assemble merges the per-chunk results of one document in chunk order.
func (in *Ingestor) assemble(index int, doc *model.Document, tasks []*chunkTask, config *model.IngestConfig) *documentBatch {
	batch := &documentBatch{index: index, title: doc.Title}

	entities := map[string]*model.Entity{}
	hyperedges := map[string]*model.Hyperedge{}

	for _, task := range tasks {
		c := task.chunk

		if task.extractErr != nil {
			err := helper.NewError("chunk "+c.ID, task.extractErr)
			if !errors.Is(task.extractErr, helper.ErrExtraction) {
				err = helper.NewExtractionError(c.ID, task.extractErr)
			}
			batch.failures = append(batch.failures, model.ChunkFailure{
				ChunkID:       c.ID,
				DocumentIndex: index,
				ChunkIndex:    c.Metadata.ChunkIndex,
				Stage:         model.StageExtraction,
				Error:         err.Error(),
			})
			if config.ExtractionPolicy == model.ExtractionPolicyAbort {
				batch.abortErr = err
				return batch
			}
			c.Metadata.ExtractionFailed = true
			c.Metadata.ExtractionError = task.extractErr.Error()
			in.logger.Warn("Extraction failed, storing chunk without graph data", slog.String("chunk_id", c.ID), slog.String("error", task.extractErr.Error()))
		}

		if task.embedErr != nil {
			batch.failures = append(batch.failures, model.ChunkFailure{
				ChunkID:       c.ID,
				DocumentIndex: index,
				ChunkIndex:    c.Metadata.ChunkIndex,
				Stage:         model.StageEmbedding,
				Error:         task.embedErr.Error(),
			})
			in.logger.Warn("Embedding failed, skipping chunk", slog.String("chunk_id", c.ID), slog.String("error", task.embedErr.Error()))
			continue
		}

		batch.chunks = append(batch.chunks, c)
		if task.extraction == nil {
			continue
		}

		names := make([]string, 0, len(task.extraction.Entities))
		for _, e := range task.extraction.Entities {
			incoming := e.Clone()
			incoming.MentionedIn = []string{c.ID}
			if existing, ok := entities[incoming.Name]; ok {
				existing.Merge(incoming)
			} else {
				entities[incoming.Name] = incoming
				batch.entities = append(batch.entities, incoming)
			}
			names = append(names, incoming.Name)
		}
		for _, h := range task.extraction.Hyperedges {
			if existing, ok := hyperedges[h.ID]; ok {
				existing.Merge(h)
				continue
			}
			incoming := h.Clone()
			if incoming.Metadata == nil {
				incoming.Metadata = model.Metadata{}
			}
			if _, ok := incoming.Metadata["chunk_id"]; !ok {
				incoming.Metadata["chunk_id"] = c.ID
			}
			hyperedges[incoming.ID] = incoming
			batch.hyperedges = append(batch.hyperedges, incoming)
		}

		c.Entities = model.NormalizeEntityNames(names)
		if len(c.Entities) > 0 {
			batch.links = append(batch.links, model.ChunkLink{ChunkID: c.ID, EntityNames: c.Entities})
		}
	}

	return batch
}

// embedEntities embeds "name: description" for every entity of a document.
func (in *Ingestor) embedEntities(ctx context.Context, entities []*model.Entity, config *model.IngestConfig, limiter *rate.Limiter) error {
	for batchStart := 0; batchStart < len(entities); batchStart += config.BatchSize {
		batch := entities[batchStart:min(batchStart+config.BatchSize, len(entities))]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = EntityEmbeddingText(e)
		}

		if err := wait(ctx, limiter); err != nil {
			return err
		}
		vectors, err := in.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) != len(batch) {
			err = helper.NewEmbeddingError("embed entities", batch[0].Name, fmt.Errorf("got %d vectors for %d entities", len(vectors), len(batch)))
		}
		if err != nil {
			for _, e := range entities {
				e.Embedding = nil
			}
			return err
		}
		for i, e := range batch {
			e.Embedding = vectors[i]
		}
	}
	return nil
}

// EntityEmbeddingText is the text embedded for an entity.
func EntityEmbeddingText(e *model.Entity) string {
	if e.Description == "" {
		return e.Name
	}
	return strings.Join([]string{e.Name, e.Description}, ": ")
}

// commit writes a document in batches: entities, hyperedges, chunks, links.
func (in *Ingestor) commit(ctx context.Context, batch *documentBatch, config *model.IngestConfig) error {
	retry := in.resilience.RetryConfig()

	if err := writeBatches(ctx, retry, batch.entities, config.BatchSize, in.store.UpsertEntities); err != nil {
		return helper.NewStoreError("upsert entities", fmt.Sprintf("document %d", batch.index), err)
	}
	if err := writeBatches(ctx, retry, batch.hyperedges, config.BatchSize, in.store.UpsertHyperedges); err != nil {
		return helper.NewStoreError("upsert hyperedges", fmt.Sprintf("document %d", batch.index), err)
	}
	if err := writeBatches(ctx, retry, batch.chunks, config.BatchSize, in.store.UpsertChunks); err != nil {
		return helper.NewStoreError("upsert chunks", fmt.Sprintf("document %d", batch.index), err)
	}
	if err := writeBatches(ctx, retry, batch.links, config.BatchSize, in.store.LinkChunkEntities); err != nil {
		return helper.NewStoreError("link chunk entities", fmt.Sprintf("document %d", batch.index), err)
	}
	return nil
}

func writeBatches[T any](ctx context.Context, retry helper.RetryConfig, items []T, size int, write func(context.Context, []T) error) error {
	for start := 0; start < len(items); start += size {
		part := items[start:min(start+size, len(items))]
		err := helper.RetryVoid(ctx, retry, func(ctx context.Context) error {
			return write(ctx, part)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
