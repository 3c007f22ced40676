package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Zereker/vecstore/pkg/log"
)

const snapshotFile = "snapshot.json"

// MemoryEngine is the ephemeral Engine backend: exact nearest-neighbor
// scans over per-collection maps. With a persist directory it snapshots
// all collections to disk on Close and reloads them on startup.
type MemoryEngine struct {
	logger     *slog.Logger
	persistDir string

	mu          sync.RWMutex
	collections map[string]*memCollection
}

var _ Engine = (*MemoryEngine)(nil)

type memCollection struct {
	mu        sync.RWMutex
	metric    Metric
	dimension int
	order     []string
	docs      map[string]map[string]any
}

// NewMemoryEngine creates an in-memory engine. persistDir may be empty
// for a fully ephemeral engine.
func NewMemoryEngine(persistDir string) (*MemoryEngine, error) {
	e := &MemoryEngine{
		logger:      log.Logger("vector.memory"),
		persistDir:  persistDir,
		collections: make(map[string]*memCollection),
	}

	if persistDir != "" {
		if err := e.loadSnapshot(); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	return e, nil
}

// EnsureCollection resolves or creates a collection. Collection names
// are case-sensitive and an existing collection keeps its metric.
func (e *MemoryEngine) EnsureCollection(ctx context.Context, name string, metric Metric, autoCreate bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.collections[name]; ok {
		return nil
	}
	if !autoCreate {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	e.collections[name] = &memCollection{
		metric: metric,
		docs:   make(map[string]map[string]any),
	}
	e.logger.Info("created collection", "name", name, "metric", metric)
	return nil
}

// DeleteCollection removes the collection and all its documents.
func (e *MemoryEngine) DeleteCollection(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(e.collections, name)
	return nil
}

func (e *MemoryEngine) collection(name string) (*memCollection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// Insert writes documents, overwriting existing ids in place. The
// collection's dimension is inferred from the first inserted embedding
// and enforced afterwards.
func (e *MemoryEngine) Insert(ctx context.Context, collection string, ids []string, docs []map[string]any) error {
	if len(ids) != len(docs) {
		return fmt.Errorf("ids and docs length mismatch: %d != %d", len(ids), len(docs))
	}

	c, err := e.collection(collection)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, id := range ids {
		embedding := embeddingOf(docs[i])
		if len(embedding) > 0 {
			if c.dimension == 0 {
				c.dimension = len(embedding)
			} else if len(embedding) != c.dimension {
				return fmt.Errorf("embedding dimension mismatch: got %d, collection has %d", len(embedding), c.dimension)
			}
		}

		if _, ok := c.docs[id]; !ok {
			c.order = append(c.order, id)
		}
		c.docs[id] = copyDoc(docs[i])
	}

	return nil
}

// Query runs an exact top-k scan over the collection, constrained by the
// filter. Hits carry the metric's raw distance value.
func (e *MemoryEngine) Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]Hit, error) {
	c, err := e.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, collection has %d", len(vector), c.dimension)
	}

	type candidate struct {
		hit Hit
		key float64
	}

	var candidates []candidate
	for _, id := range c.order {
		doc := c.docs[id]
		if !filter.Match(doc) {
			continue
		}

		distance, key := rawDistance(c.metric, vector, embeddingOf(doc))
		candidates = append(candidates, candidate{
			hit: Hit{ID: id, Source: copyDoc(doc), Distance: distance},
			key: key,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].key < candidates[j].key
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}

	hits := make([]Hit, 0, len(candidates))
	for _, cand := range candidates {
		hits = append(hits, cand.hit)
	}
	return hits, nil
}

// Get fetches documents by exact id. Missing ids are skipped.
func (e *MemoryEngine) Get(ctx context.Context, collection string, ids []string) ([]Hit, error) {
	c, err := e.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var hits []Hit
	for _, id := range ids {
		doc, ok := c.docs[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: id, Source: copyDoc(doc)})
	}
	return hits, nil
}

// Delete removes one document and reports whether it existed.
func (e *MemoryEngine) Delete(ctx context.Context, collection string, id string) (bool, error) {
	c, err := e.collection(collection)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return false, nil
	}

	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Scan returns up to limit documents matching the filter, in insertion
// order.
func (e *MemoryEngine) Scan(ctx context.Context, collection string, filter *Filter, limit int) ([]Hit, error) {
	c, err := e.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var hits []Hit
	for _, id := range c.order {
		if limit > 0 && len(hits) >= limit {
			break
		}
		doc := c.docs[id]
		if !filter.Match(doc) {
			continue
		}
		hits = append(hits, Hit{ID: id, Source: copyDoc(doc)})
	}
	return hits, nil
}

// Count reports document cardinality. The nil-filter case reads the map
// length directly instead of scanning.
func (e *MemoryEngine) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	c, err := e.collection(collection)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if filter == nil {
		return len(c.docs), nil
	}

	count := 0
	for _, doc := range c.docs {
		if filter.Match(doc) {
			count++
		}
	}
	return count, nil
}

// Close flushes the snapshot when a persist directory is configured.
func (e *MemoryEngine) Close() error {
	if e.persistDir == "" {
		return nil
	}
	return e.saveSnapshot()
}

// rawDistance computes the metric's raw value between two vectors plus a
// sort key where smaller means closer. For ip the raw value is the
// signed inner product, so the key is its negation.
func rawDistance(metric Metric, a, b []float32) (distance, key float64) {
	switch metric {
	case MetricL2:
		d := euclidean(a, b)
		return d, d
	case MetricIP:
		d := dot(a, b)
		return d, -d
	default:
		// Cosine distance, also the fallback for unknown metrics.
		d := 1.0 - cosineSimilarity(a, b)
		return d, d
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// embeddingOf extracts the embedding field, tolerating the []any form a
// JSON round-trip produces. A missing or malformed embedding degrades to
// nil rather than failing.
func embeddingOf(doc map[string]any) []float32 {
	switch emb := doc[FieldEmbedding].(type) {
	case []float32:
		return emb
	case []any:
		out := make([]float32, 0, len(emb))
		for _, v := range emb {
			f, ok := toFloat64(v)
			if !ok {
				return nil
			}
			out = append(out, float32(f))
		}
		return out
	default:
		return nil
	}
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case FieldEmbedding:
			if emb, ok := v.([]float32); ok {
				v = append([]float32(nil), emb...)
			}
		case FieldMetadata:
			if meta, ok := v.(map[string]any); ok {
				copied := make(map[string]any, len(meta))
				for mk, mv := range meta {
					copied[mk] = mv
				}
				v = copied
			}
		}
		out[k] = v
	}
	return out
}

// Snapshot persistence. One JSON file holds every collection so
// collection names never have to be path-safe.

type snapshot struct {
	Collections map[string]snapshotCollection `json:"collections"`
}

type snapshotCollection struct {
	Metric    Metric                    `json:"metric"`
	Dimension int                       `json:"dimension"`
	Order     []string                  `json:"order"`
	Docs      map[string]map[string]any `json:"docs"`
}

func (e *MemoryEngine) snapshotPath() string {
	return filepath.Join(e.persistDir, snapshotFile)
}

func (e *MemoryEngine) saveSnapshot() error {
	e.mu.RLock()
	snap := snapshot{Collections: make(map[string]snapshotCollection, len(e.collections))}
	for name, c := range e.collections {
		c.mu.RLock()
		snap.Collections[name] = snapshotCollection{
			Metric:    c.metric,
			Dimension: c.dimension,
			Order:     append([]string(nil), c.order...),
			Docs:      c.docs,
		}
		c.mu.RUnlock()
	}
	e.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(e.persistDir, 0o755); err != nil {
		return fmt.Errorf("create persist directory: %w", err)
	}
	if err := os.WriteFile(e.snapshotPath(), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	e.logger.Info("saved snapshot", "path", e.snapshotPath(), "collections", len(snap.Collections))
	return nil
}

func (e *MemoryEngine) loadSnapshot() error {
	data, err := os.ReadFile(e.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	for name, sc := range snap.Collections {
		c := &memCollection{
			metric:    sc.Metric,
			dimension: sc.Dimension,
			order:     sc.Order,
			docs:      make(map[string]map[string]any, len(sc.Docs)),
		}
		for id, doc := range sc.Docs {
			// JSON turns embeddings into []any, normalize them back.
			if emb := embeddingOf(doc); emb != nil {
				doc[FieldEmbedding] = emb
			}
			c.docs[id] = doc
		}
		e.collections[name] = c
	}

	e.logger.Info("loaded snapshot", "path", e.snapshotPath(), "collections", len(e.collections))
	return nil
}
