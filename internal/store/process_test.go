package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/vecstore/internal/domain"
)

// countingEmbedder 记录调用顺序，可在指定文本上失败
type countingEmbedder struct {
	calls  []string
	failOn string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls = append(e.calls, text)
	if e.failOn != "" && text == e.failOn {
		return nil, fmt.Errorf("embedding backend rejected %q", text)
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func testDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:      fmt.Sprintf("doc-%d", i),
			Content: fmt.Sprintf("content %d", i),
		}
	}
	return docs
}

func TestProcessAllOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})

	embedder := &countingEmbedder{}
	s.SetEmbedder(embedder)

	processed, err := s.ProcessAll(ctx, testDocs(3))
	require.NoError(t, err)
	require.Len(t, processed, 3)

	// 严格按输入顺序逐条处理
	assert.Equal(t, []string{"content 0", "content 1", "content 2"}, embedder.calls)
	assert.Equal(t, "doc-0", processed[0].ID)
	assert.Equal(t, "doc-2", processed[2].ID)

	count, err := s.CountVectors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestProcessWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})

	_, err := s.ProcessAll(ctx, testDocs(2))
	require.ErrorIs(t, err, ErrEmbedderNotConfigured)

	// 没有任何文档被写入
	count, err := s.CountVectors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProcessFailFast(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})

	embedder := &countingEmbedder{failOn: "content 1"}
	s.SetEmbedder(embedder)

	processed, err := s.ProcessAll(ctx, testDocs(4))
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "embed document", storageErr.Op)
	assert.Equal(t, "doc-1", storageErr.ID)

	// 失败前的文档保留，不回滚；失败后的文档不再处理
	require.Len(t, processed, 1)
	assert.Equal(t, "doc-0", processed[0].ID)
	assert.Equal(t, []string{"content 0", "content 1"}, embedder.calls)

	count, err := s.CountVectors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessIsLazy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})

	embedder := &countingEmbedder{}
	s.SetEmbedder(embedder)

	docs := testDocs(5)
	seq := func(yield func(domain.Document) bool) {
		for _, d := range docs {
			if !yield(d) {
				return
			}
		}
	}

	// 消费两条后中断，后面的文档不应被嵌入
	seen := 0
	for _, err := range s.Process(ctx, seq) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}

	assert.Equal(t, 2, seen)
	assert.Len(t, embedder.calls, 2)

	count, err := s.CountVectors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessEmptyInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	s.SetEmbedder(&countingEmbedder{})

	processed, err := s.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, processed)
}
