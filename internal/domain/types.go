package domain

// IndexTypeApproximate is the index type reported in store statistics.
// The underlying engines are approximate nearest-neighbor indexes.
const IndexTypeApproximate = "approximate"

// VectorEntry 向量存储单元
//
// The embedding length must match the collection's dimension once one is
// established; the dimension is inferred from the first inserted vector.
type VectorEntry struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SearchResult 检索结果投影
//
// Score is a similarity in [0,1], higher is more similar. Produced only
// by query operations, never persisted.
type SearchResult struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// StoreStats 存储统计（按需计算，不落盘）
type StoreStats struct {
	TotalVectors     int    `json:"total_vectors"`
	VectorDimension  int    `json:"vector_dimension"`
	StorageSizeBytes int64  `json:"storage_size_bytes"`
	IndexType        string `json:"index_type"`
}

// Document is one unit of the ingestion pipeline: raw text plus
// metadata, embedded and stored during processing.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchRequest is a similarity query against the store.
type SearchRequest struct {
	Vector    []float32      `json:"vector"`
	Limit     int            `json:"limit"`
	Threshold *float64       `json:"threshold,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// ScanRequest is an exact metadata-filtered lookup.
type ScanRequest struct {
	Filters map[string]any `json:"filters"`
	Limit   int            `json:"limit"`
}

// IngestRequest carries documents into the processing pipeline. Async
// requests are published to the message queue instead of being embedded
// inline.
type IngestRequest struct {
	Documents []Document `json:"documents"`
	Async     bool       `json:"async,omitempty"`
}
