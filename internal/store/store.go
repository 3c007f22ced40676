// Package store implements the vector store facade: it validates
// configuration, routes operations to the configured collection's index
// engine, converts raw distances to similarity scores and drives the
// document processing pipeline.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zereker/vecstore/internal/domain"
	"github.com/Zereker/vecstore/pkg/cache"
	"github.com/Zereker/vecstore/pkg/embed"
	"github.com/Zereker/vecstore/pkg/log"
	"github.com/Zereker/vecstore/pkg/vector"
)

// Store is the facade over one collection of an index engine.
//
// Operations on a single Store are expected to be invoked sequentially
// by the caller; the engines guard their own shared state but the Store
// adds no cross-operation transactionality.
type Store struct {
	logger *slog.Logger
	engine vector.Engine

	collection string
	metric     vector.Metric
	autoCreate bool
	batchSize  int
	maxRetries int

	embedder embed.Embedder
	cache    *cache.SearchCache
}

// New creates a Store over the given engine. Configuration violations
// fail fast with a ConfigError before any engine call.
func New(ctx context.Context, cfg Config, engine vector.Engine) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metric, _ := vector.ParseMetric(cfg.distanceMetric())

	s := &Store{
		logger:     log.Logger("store"),
		engine:     engine,
		collection: cfg.collectionName(),
		metric:     metric,
		autoCreate: cfg.autoCreate(),
		batchSize:  cfg.batchSize(),
		maxRetries: cfg.maxRetries(),
	}

	if err := engine.EnsureCollection(ctx, s.collection, s.metric, s.autoCreate); err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return nil, err
		}
		return nil, s.storageErr("initialize collection", "", err)
	}

	s.logger.Info("store initialized",
		"collection", s.collection,
		"metric", s.metric,
		"batch_size", s.batchSize,
	)

	if cfg.AutoClearOnInit {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SetEmbedder registers the embedding capability used by Process. The
// slot starts unset; Process fails with ErrEmbedderNotConfigured until
// it is filled.
func (s *Store) SetEmbedder(embedder embed.Embedder) {
	s.embedder = embedder
	s.logger.Info("embedder set")
}

// SetCache attaches an optional search result cache. A nil cache is
// valid and disables caching.
func (s *Store) SetCache(c *cache.SearchCache) {
	s.cache = c
}

// Collection returns the configured collection name.
func (s *Store) Collection() string {
	return s.collection
}

// AddVector stores a single entry and returns its id. An existing id is
// overwritten.
func (s *Store) AddVector(ctx context.Context, entry domain.VectorEntry) (string, error) {
	err := s.engine.Insert(ctx, s.collection, []string{entry.ID}, []map[string]any{encodeEntry(entry)})
	if err != nil {
		return "", s.storageErr("add vector", entry.ID, err)
	}

	s.cache.Invalidate(ctx, s.collection)
	s.logger.Debug("added vector", "id", entry.ID)
	return entry.ID, nil
}

// AddVectors stores entries in configured batch-size chunks and returns
// their ids. An empty input is a no-op returning an empty id list.
func (s *Store) AddVectors(ctx context.Context, entries []domain.VectorEntry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(entries))
	for start := 0; start < len(entries); start += s.batchSize {
		end := min(start+s.batchSize, len(entries))
		chunk := entries[start:end]

		chunkIDs := make([]string, 0, len(chunk))
		docs := make([]map[string]any, 0, len(chunk))
		for _, entry := range chunk {
			chunkIDs = append(chunkIDs, entry.ID)
			docs = append(docs, encodeEntry(entry))
		}

		if err := s.engine.Insert(ctx, s.collection, chunkIDs, docs); err != nil {
			return nil, s.storageErr("add vectors", "", err)
		}
		ids = append(ids, chunkIDs...)
	}

	s.cache.Invalidate(ctx, s.collection)
	s.logger.Info("added vectors", "count", len(ids))
	return ids, nil
}

// GetVector fetches an entry by id, returning nil when it does not
// exist. Partially populated engine results degrade to empty fields
// instead of failing.
func (s *Store) GetVector(ctx context.Context, id string) (*domain.VectorEntry, error) {
	var hits []vector.Hit
	err := s.withRetry(ctx, func() error {
		var err error
		hits, err = s.engine.Get(ctx, s.collection, []string{id})
		return err
	})
	if err != nil {
		return nil, s.storageErr("get vector", id, err)
	}

	if len(hits) == 0 {
		return nil, nil
	}

	entry := reconstructEntry(hits[0].ID, hits[0].Source)
	return &entry, nil
}

// DeleteVector removes an entry by id and reports whether one was
// removed. This is the one mutating operation that downgrades engine
// failures to a false return instead of propagating them.
func (s *Store) DeleteVector(ctx context.Context, id string) bool {
	deleted, err := s.engine.Delete(ctx, s.collection, id)
	if err != nil {
		s.logger.Error("failed to delete vector", "id", id, "error", err)
		return false
	}
	if deleted {
		s.cache.Invalidate(ctx, s.collection)
		s.logger.Debug("deleted vector", "id", id)
	}
	return deleted
}

// UpdateVector replaces an entry by deleting then re-adding it. The
// result is always exactly the new entry, never a merge; a previously
// missing id turns the update into a plain insert.
func (s *Store) UpdateVector(ctx context.Context, entry domain.VectorEntry) error {
	s.DeleteVector(ctx, entry.ID)
	if _, err := s.AddVector(ctx, entry); err != nil {
		return s.storageErr("update vector", entry.ID, err)
	}
	s.logger.Debug("updated vector", "id", entry.ID)
	return nil
}

// SearchSimilar runs a top-limit similarity query. Results keep the
// engine's native rank order; a threshold drops results whose score is
// below it without re-sorting the survivors.
func (s *Store) SearchSimilar(ctx context.Context, queryVector []float32, limit int, threshold *float64, filters map[string]any) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got: %d", limit)
	}

	cacheKey := searchCacheKey(queryVector, limit, threshold, filters)
	var cached []domain.SearchResult
	if s.cache.Get(ctx, s.collection, cacheKey, &cached) {
		return cached, nil
	}

	filter := vector.CompileFilter(filters)

	var hits []vector.Hit
	err := s.withRetry(ctx, func() error {
		var err error
		hits, err = s.engine.Query(ctx, s.collection, queryVector, limit, filter)
		return err
	})
	if err != nil {
		return nil, s.storageErr("search similar vectors", "", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := vector.Score(s.metric, hit.Distance)
		if threshold != nil && score < *threshold {
			continue
		}

		entry := reconstructEntry(hit.ID, hit.Source)
		results = append(results, domain.SearchResult{
			ID:       entry.ID,
			Content:  entry.Content,
			Metadata: entry.Metadata,
			Score:    score,
		})
	}

	s.cache.Set(ctx, s.collection, cacheKey, results)
	s.logger.Debug("search finished", "hits", len(results))
	return results, nil
}

// SearchByMetadata retrieves up to limit entries matching the filter
// exactly. No distance is computed, so every result carries score 1.0.
func (s *Store) SearchByMetadata(ctx context.Context, filters map[string]any, limit int) ([]domain.SearchResult, error) {
	filter := vector.CompileFilter(filters)

	var hits []vector.Hit
	err := s.withRetry(ctx, func() error {
		var err error
		hits, err = s.engine.Scan(ctx, s.collection, filter, limit)
		return err
	})
	if err != nil {
		return nil, s.storageErr("search by metadata", "", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		entry := reconstructEntry(hit.ID, hit.Source)
		results = append(results, domain.SearchResult{
			ID:        entry.ID,
			Content:   entry.Content,
			Metadata:  entry.Metadata,
			Score:     1.0,
			Embedding: entry.Embedding,
		})
	}
	return results, nil
}

// CountVectors reports entry cardinality, optionally filtered. The
// unfiltered case uses the engine's native count.
func (s *Store) CountVectors(ctx context.Context, filters map[string]any) (int, error) {
	filter := vector.CompileFilter(filters)

	var count int
	err := s.withRetry(ctx, func() error {
		var err error
		count, err = s.engine.Count(ctx, s.collection, filter)
		return err
	})
	if err != nil {
		return 0, s.storageErr("count vectors", "", err)
	}
	return count, nil
}

// Clear deletes the collection and recreates it empty with the same
// metric.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.engine.DeleteCollection(ctx, s.collection); err != nil {
		return s.storageErr("clear collection", "", err)
	}
	if err := s.engine.EnsureCollection(ctx, s.collection, s.metric, true); err != nil {
		return s.storageErr("clear collection", "", err)
	}

	s.cache.Invalidate(ctx, s.collection)
	s.logger.Info("cleared collection", "collection", s.collection)
	return nil
}

// GetStats aggregates the total count and samples one stored entry for
// the dimension. The engines do not expose byte-level accounting, so
// storage size is reported as zero.
func (s *Store) GetStats(ctx context.Context) (domain.StoreStats, error) {
	total, err := s.CountVectors(ctx, nil)
	if err != nil {
		return domain.StoreStats{}, err
	}

	dimension := 0
	if hits, err := s.engine.Scan(ctx, s.collection, nil, 1); err == nil && len(hits) > 0 {
		entry := reconstructEntry(hits[0].ID, hits[0].Source)
		dimension = len(entry.Embedding)
	}

	return domain.StoreStats{
		TotalVectors:     total,
		VectorDimension:  dimension,
		StorageSizeBytes: 0,
		IndexType:        domain.IndexTypeApproximate,
	}, nil
}

// withRetry re-runs read operations up to maxRetries times with a short
// linear backoff. Mutations are never retried: the engines make no
// idempotency promises for partially applied writes.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || attempt >= s.maxRetries {
			return err
		}

		s.logger.Warn("retrying engine operation", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
}

func searchCacheKey(queryVector []float32, limit int, threshold *float64, filters map[string]any) string {
	payload, _ := json.Marshal(map[string]any{
		"vector":    queryVector,
		"limit":     limit,
		"threshold": threshold,
		"filters":   filters,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
