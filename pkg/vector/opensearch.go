package vector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/Zereker/vecstore/pkg/log"
)

// OpenSearchConfig holds OpenSearch engine configuration.
type OpenSearchConfig struct {
	Addresses   []string `toml:"addresses"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	IndexPrefix string   `toml:"index_prefix"`
	Dimension   int      `toml:"dimension"`
	InsecureSSL bool     `toml:"insecure_ssl"`
}

// Validate checks OpenSearch configuration.
func (c *OpenSearchConfig) Validate() error {
	if len(c.Addresses) == 0 {
		return fmt.Errorf("addresses is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return nil
}

// OpenSearchEngine implements Engine on OpenSearch k-NN. Each collection
// maps to one index named <prefix><collection>; the collection's metric
// becomes the index's knn space type.
type OpenSearchEngine struct {
	logger    *slog.Logger
	client    *opensearchapi.Client
	prefix    string
	dimension int

	mu      sync.RWMutex
	metrics map[string]Metric
}

var _ Engine = (*OpenSearchEngine)(nil)

// NewOpenSearchEngine creates an OpenSearch-backed engine.
func NewOpenSearchEngine(cfg OpenSearchConfig) (*OpenSearchEngine, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "vecstore-"
	}

	return &OpenSearchEngine{
		logger:    log.Logger("vector.opensearch"),
		client:    client,
		prefix:    prefix,
		dimension: cfg.Dimension,
		metrics:   make(map[string]Metric),
	}, nil
}

func (e *OpenSearchEngine) indexName(collection string) string {
	return e.prefix + collection
}

func (e *OpenSearchEngine) metricFor(collection string) Metric {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if m, ok := e.metrics[collection]; ok {
		return m
	}
	return MetricCosine
}

// spaceType maps a metric to the OpenSearch knn space type.
func spaceType(metric Metric) string {
	switch metric {
	case MetricL2:
		return "l2"
	case MetricIP:
		return "innerproduct"
	default:
		return "cosinesimil"
	}
}

// EnsureCollection resolves or creates the backing index. The metric is
// remembered in-process so query scores can be mapped back to raw
// distances.
func (e *OpenSearchEngine) EnsureCollection(ctx context.Context, name string, metric Metric, autoCreate bool) error {
	index := e.indexName(name)

	exists, err := e.indexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}

	if !exists {
		if !autoCreate {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}

		mapping := map[string]any{
			"settings": map[string]any{
				"index": map[string]any{"knn": true},
			},
			"mappings": map[string]any{
				"_meta": map[string]any{"distance_metric": string(metric)},
				// Metadata strings are indexed as keywords so equality
				// term filters work without analysis.
				"dynamic_templates": []map[string]any{
					{
						"metadata_strings": map[string]any{
							"path_match":         FieldMetadata + ".*",
							"match_mapping_type": "string",
							"mapping":            map[string]any{"type": "keyword"},
						},
					},
				},
				"properties": map[string]any{
					FieldEmbedding: map[string]any{
						"type":      "knn_vector",
						"dimension": e.dimension,
						"method": map[string]any{
							"name":       "hnsw",
							"engine":     "faiss",
							"space_type": spaceType(metric),
						},
					},
					FieldContent: map[string]any{"type": "text"},
				},
			},
		}

		body, _ := json.Marshal(mapping)
		if _, err := e.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
			Index: index,
			Body:  bytes.NewReader(body),
		}); err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		e.logger.Info("created index", "index", index, "metric", metric)
	}

	e.mu.Lock()
	e.metrics[name] = metric
	e.mu.Unlock()
	return nil
}

func (e *OpenSearchEngine) indexExists(ctx context.Context, index string) (bool, error) {
	resp, err := e.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{index}})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusOK, nil
}

// DeleteCollection drops the backing index.
func (e *OpenSearchEngine) DeleteCollection(ctx context.Context, name string) error {
	index := e.indexName(name)

	_, err := e.client.Indices.Delete(ctx, opensearchapi.IndicesDeleteReq{Indices: []string{index}})
	if err != nil {
		if strings.Contains(err.Error(), "index_not_found") {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		return fmt.Errorf("delete index %s: %w", index, err)
	}

	e.mu.Lock()
	delete(e.metrics, name)
	e.mu.Unlock()
	return nil
}

// Insert indexes documents one by one with an immediate refresh so
// follow-up reads see them.
func (e *OpenSearchEngine) Insert(ctx context.Context, collection string, ids []string, docs []map[string]any) error {
	if len(ids) != len(docs) {
		return fmt.Errorf("ids and docs length mismatch: %d != %d", len(ids), len(docs))
	}

	index := e.indexName(collection)
	for i, id := range ids {
		body, err := json.Marshal(docs[i])
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", id, err)
		}

		if _, err := e.client.Index(ctx, opensearchapi.IndexReq{
			Index:      index,
			DocumentID: id,
			Body:       bytes.NewReader(body),
			Params:     opensearchapi.IndexParams{Refresh: "true"},
		}); err != nil {
			return fmt.Errorf("index document %s: %w", id, err)
		}
	}
	return nil
}

// Query runs a filtered k-NN search and converts OpenSearch scores back
// to raw metric distances.
func (e *OpenSearchEngine) Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]Hit, error) {
	searchQuery := map[string]any{
		"size": k,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"knn": map[string]any{
						FieldEmbedding: map[string]any{"vector": vector, "k": k},
					},
				},
				"filter": termClauses(filter),
			},
		},
	}

	body, _ := json.Marshal(searchQuery)
	resp, err := e.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{e.indexName(collection)},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	metric := e.metricFor(collection)

	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc map[string]any
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			continue
		}
		if emb := embeddingOf(doc); emb != nil {
			doc[FieldEmbedding] = emb
		}
		hits = append(hits, Hit{
			ID:       h.ID,
			Source:   doc,
			Distance: distanceFromScore(metric, float64(h.Score)),
		})
	}
	return hits, nil
}

// Get fetches documents by id. Missing ids are skipped, fetch failures
// degrade to absent entries like the document API does.
func (e *OpenSearchEngine) Get(ctx context.Context, collection string, ids []string) ([]Hit, error) {
	index := e.indexName(collection)

	var hits []Hit
	for _, id := range ids {
		resp, err := e.client.Document.Get(ctx, opensearchapi.DocumentGetReq{
			Index:      index,
			DocumentID: id,
		})
		if err != nil || !resp.Found {
			continue
		}

		var doc map[string]any
		if err := json.Unmarshal(resp.Source, &doc); err != nil {
			continue
		}
		if emb := embeddingOf(doc); emb != nil {
			doc[FieldEmbedding] = emb
		}
		hits = append(hits, Hit{ID: id, Source: doc})
	}
	return hits, nil
}

// Delete removes one document, reporting false for a missing id.
func (e *OpenSearchEngine) Delete(ctx context.Context, collection string, id string) (bool, error) {
	resp, err := e.client.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      e.indexName(collection),
		DocumentID: id,
		Params:     opensearchapi.DocumentDeleteParams{Refresh: "true"},
	})
	if err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return false, nil
		}
		return false, fmt.Errorf("delete document %s: %w", id, err)
	}
	return resp.Result == "deleted", nil
}

// Scan returns documents matching the filter without similarity ranking.
func (e *OpenSearchEngine) Scan(ctx context.Context, collection string, filter *Filter, limit int) ([]Hit, error) {
	searchQuery := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{"filter": termClauses(filter)},
		},
	}

	body, _ := json.Marshal(searchQuery)
	resp, err := e.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{e.indexName(collection)},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc map[string]any
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			continue
		}
		if emb := embeddingOf(doc); emb != nil {
			doc[FieldEmbedding] = emb
		}
		hits = append(hits, Hit{ID: h.ID, Source: doc})
	}
	return hits, nil
}

// Count uses a size-0 search with track_total_hits, the engine's native
// counting path.
func (e *OpenSearchEngine) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	searchQuery := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": termClauses(filter)},
		},
	}

	body, _ := json.Marshal(searchQuery)
	resp, err := e.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{e.indexName(collection)},
		Body:    bytes.NewReader(body),
		Params: opensearchapi.SearchParams{
			Size:           opensearchapi.ToPointer(0),
			TrackTotalHits: true,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return resp.Hits.Total.Value, nil
}

// Close closes the OpenSearch connection.
func (e *OpenSearchEngine) Close() error {
	return nil
}

// termClauses translates a compiled filter into term clauses for a bool
// query. A nil filter compiles to no clauses, matching everything.
func termClauses(filter *Filter) []map[string]any {
	if filter == nil {
		return []map[string]any{}
	}

	clauses := make([]map[string]any, 0, len(filter.Conditions))
	for _, cond := range filter.Conditions {
		clauses = append(clauses, map[string]any{
			"term": map[string]any{FieldMetadata + "." + cond.Field: cond.Value},
		})
	}
	return clauses
}

// distanceFromScore inverts the OpenSearch knn score normalization back
// to the raw metric value so similarity scoring stays in one place.
//
//	l2:           score = 1 / (1 + d^2)
//	cosinesimil:  score = (2 - d) / 2
//	innerproduct: score = d + 1 for d >= 0, 1 / (1 - d) otherwise
func distanceFromScore(metric Metric, score float64) float64 {
	switch metric {
	case MetricL2:
		if score <= 0 {
			return math.Inf(1)
		}
		return math.Sqrt(math.Max(0, 1/score-1))
	case MetricIP:
		if score >= 1 {
			return score - 1
		}
		if score <= 0 {
			return math.Inf(-1)
		}
		return 1 - 1/score
	default:
		return 2 - 2*score
	}
}
