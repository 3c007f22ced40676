package store

import (
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/Zereker/vecstore/internal/domain"
	"github.com/Zereker/vecstore/pkg/vector"
)

// encodeEntry builds the engine document for an entry. Empty metadata is
// replaced by the sentinel marker because engine storage layers reject
// documents without metadata fields; the substitution is invisible to
// every other operation.
func encodeEntry(entry domain.VectorEntry) map[string]any {
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = map[string]any{vector.EmptyMarkerKey: true}
	}

	return map[string]any{
		vector.FieldContent:   entry.Content,
		vector.FieldEmbedding: entry.Embedding,
		vector.FieldMetadata:  metadata,
	}
}

type engineDoc struct {
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// reconstructEntry rebuilds a VectorEntry from an engine document,
// applying one fallback chain for every retrieval path: a missing
// embedding degrades to empty, missing content falls back to a content
// key inside metadata, missing metadata degrades to an empty map.
func reconstructEntry(id string, source map[string]any) domain.VectorEntry {
	var doc engineDoc

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       float32SliceHook,
	})
	if err == nil {
		// Sparse or partially typed documents decode on a best-effort
		// basis; whatever fields fail stay at their zero values.
		_ = decoder.Decode(source)
	}

	content := doc.Content
	if content == "" {
		if v, ok := doc.Metadata[vector.FieldContent].(string); ok {
			content = v
		}
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return domain.VectorEntry{
		ID:        id,
		Content:   content,
		Embedding: doc.Embedding,
		Metadata:  metadata,
	}
}

// float32SliceHook converts the []any form produced by JSON transports
// back into []float32.
func float32SliceHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]float32{}) {
		return data, nil
	}

	raw, ok := data.([]any)
	if !ok {
		return data, nil
	}

	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, float32(n))
		case float32:
			out = append(out, n)
		case int:
			out = append(out, float32(n))
		case int64:
			out = append(out, float32(n))
		default:
			return data, nil
		}
	}
	return out, nil
}
