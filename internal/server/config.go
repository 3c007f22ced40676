package server

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/vecstore/internal/store"
	"github.com/Zereker/vecstore/pkg/cache"
	"github.com/Zereker/vecstore/pkg/embed"
	"github.com/Zereker/vecstore/pkg/log"
	"github.com/Zereker/vecstore/pkg/mq"
	"github.com/Zereker/vecstore/pkg/vector"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig             `toml:"server"`
	Log        log.Config               `toml:"log"`
	Store      store.Config             `toml:"store"`
	OpenSearch vector.OpenSearchConfig  `toml:"opensearch"`
	Embedding  embed.Config             `toml:"embedding"`
	Kafka      mq.KafkaConfig           `toml:"kafka"`
	Cache      cache.Config             `toml:"cache"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	// The opensearch section only matters when it is the selected engine.
	if c.Store.EngineKind() == store.EngineOpenSearch {
		if err := c.OpenSearch.Validate(); err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
	}

	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	return nil
}

// LoadConfig reads and parses the configuration file. Environment
// variables overlay the store section before validation; explicit file
// values win over the environment.
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	cfg.Store.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
