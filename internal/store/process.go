package store

import (
	"context"
	"iter"

	"github.com/Zereker/vecstore/internal/domain"
)

// Process embeds and stores documents lazily, one at a time, in input
// order. Each successfully stored document is yielded back; the first
// failure is yielded together with its error and processing stops
// there. No rollback is attempted for documents stored before the
// failure.
//
// A configured embedder is required: without one the sequence yields a
// single ErrEmbedderNotConfigured before consuming any input.
func (s *Store) Process(ctx context.Context, docs iter.Seq[domain.Document]) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		if s.embedder == nil {
			yield(domain.Document{}, ErrEmbedderNotConfigured)
			return
		}

		for doc := range docs {
			embedding, err := s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				yield(doc, s.storageErr("embed document", doc.ID, err))
				return
			}

			entry := domain.VectorEntry{
				ID:        doc.ID,
				Content:   doc.Content,
				Embedding: embedding,
				Metadata:  doc.Metadata,
			}
			if _, err := s.AddVector(ctx, entry); err != nil {
				yield(doc, err)
				return
			}

			if !yield(doc, nil) {
				return
			}
		}
	}
}

// ProcessAll drains Process eagerly and returns the documents stored
// before the first failure, plus that failure if one occurred.
func (s *Store) ProcessAll(ctx context.Context, docs []domain.Document) ([]domain.Document, error) {
	processed := make([]domain.Document, 0, len(docs))

	seq := func(yield func(domain.Document) bool) {
		for _, doc := range docs {
			if !yield(doc) {
				return
			}
		}
	}

	for doc, err := range s.Process(ctx, seq) {
		if err != nil {
			return processed, err
		}
		processed = append(processed, doc)
	}
	return processed, nil
}
