// Package embed provides the text embedding capability consumed by the
// vector store during document processing.
package embed

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyInput is returned when there is no text to embed.
var ErrEmptyInput = errors.New("empty input text")

// Embedder turns text into a fixed-length vector. Implementations must
// return vectors of a stable length per model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds embedding provider configuration.
type Config struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	Enabled    bool   `toml:"enabled"`
}

// Validate checks embedding configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required when embedding is enabled")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required when embedding is enabled")
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("dimensions must be non-negative")
	}
	return nil
}
