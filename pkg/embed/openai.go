package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Embedder using the OpenAI embeddings API. Any
// OpenAI-compatible provider works by pointing base_url at it.
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder from config.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAI{
		client:     &client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	embedding := resp.Data[0].Embedding
	out := make([]float32, len(embedding))
	for i, v := range embedding {
		out[i] = float32(v)
	}
	return out, nil
}
