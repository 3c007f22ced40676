// Package vector provides the storage engine abstraction for vector
// collections: a metric-aware similarity scoring function, a metadata
// filter compiler, and pluggable index engines (in-memory, OpenSearch).
package vector

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Reserved document fields. Everything else in an engine document is
// user metadata.
const (
	FieldContent   = "content"
	FieldEmbedding = "embedding"
	FieldMetadata  = "metadata"
)

// EmptyMarkerKey is stored instead of empty metadata because some engine
// storage layers reject documents without metadata fields. It is added at
// write time only when the entry carries no metadata of its own.
const EmptyMarkerKey = "_empty"

// ErrCollectionNotFound is returned when a collection is referenced but
// does not exist and auto-create is disabled.
var ErrCollectionNotFound = errors.New("collection not found")

// Metric identifies the distance function used to rank nearest neighbors.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// ParseMetric validates a metric name. Names are case-sensitive.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2, MetricIP:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("invalid distance metric: %q, must be one of: cosine, l2, ip", s)
	}
}

// Hit is one raw result returned by an engine. Distance carries the
// metric's raw value for the hit: cosine distance in [0,2], euclidean
// distance for l2, and the signed inner product for ip. Score conversion
// is the caller's job, see Score.
type Hit struct {
	ID       string
	Source   map[string]any
	Distance float64
}

// Engine is the index capability a Store is built on. One engine serves
// many named collections; each collection is an isolated namespace with
// its own dimension and distance metric.
//
// Query and Scan report hits in the engine's native rank order, closest
// first. Engines learn a collection's metric from EnsureCollection, so a
// collection must be ensured in-process before it is queried.
type Engine interface {
	// EnsureCollection resolves a collection by name. A missing
	// collection is created when autoCreate is true, otherwise the call
	// fails with ErrCollectionNotFound.
	EnsureCollection(ctx context.Context, name string, metric Metric, autoCreate bool) error

	// DeleteCollection removes the collection and every entry in it.
	// Deleting a missing collection fails with ErrCollectionNotFound.
	DeleteCollection(ctx context.Context, name string) error

	// Insert writes documents under the given ids, overwriting any
	// existing document with the same id. ids and docs must be the same
	// length.
	Insert(ctx context.Context, collection string, ids []string, docs []map[string]any) error

	// Query runs a top-k nearest neighbor search, constrained to
	// documents matching the filter when one is given.
	Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]Hit, error)

	// Get fetches documents by exact id. Missing ids are simply absent
	// from the result, in no particular order.
	Get(ctx context.Context, collection string, ids []string) ([]Hit, error)

	// Delete removes one document by id. It reports whether a document
	// was actually removed; a missing id is not an error.
	Delete(ctx context.Context, collection string, id string) (bool, error)

	// Scan returns up to limit documents matching the filter, without
	// any similarity ranking.
	Scan(ctx context.Context, collection string, filter *Filter, limit int) ([]Hit, error)

	// Count reports the number of documents, optionally constrained by
	// a filter. A nil filter must use the engine's native count rather
	// than scanning.
	Count(ctx context.Context, collection string, filter *Filter) (int, error)

	// Close releases engine resources.
	Close() error
}
