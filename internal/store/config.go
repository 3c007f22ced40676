package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Zereker/vecstore/pkg/vector"
)

// Engine kinds selectable in configuration.
const (
	EngineMemory     = "memory"
	EngineOpenSearch = "opensearch"
)

// Defaults applied when neither the config file nor the environment
// sets a value.
const (
	DefaultCollectionName = "refinire_documents"
	DefaultBatchSize      = 100
	DefaultMaxRetries     = 3
)

const envPrefix = "VECSTORE_"

// Config holds store configuration. Pointer fields distinguish "unset"
// from explicit zero values so that an explicit batch_size = 0 is a
// validation error rather than silently becoming the default.
type Config struct {
	Engine               string `toml:"engine"`
	PersistLocation      string `toml:"persist_location"`
	CollectionName       string `toml:"collection_name"`
	DistanceMetric       string `toml:"distance_metric"`
	AutoCreateCollection *bool  `toml:"auto_create_collection"`
	BatchSize            *int   `toml:"batch_size"`
	MaxRetries           *int   `toml:"max_retries"`
	AutoClearOnInit      bool   `toml:"auto_clear_on_init"`
}

// ApplyEnv fills fields the config file left unset from VECSTORE_*
// environment variables. The merge happens exactly once at load time:
// explicit file values win over the environment, the environment wins
// over defaults.
func (c *Config) ApplyEnv() {
	if c.Engine == "" {
		c.Engine = os.Getenv(envPrefix + "ENGINE")
	}
	if c.PersistLocation == "" {
		c.PersistLocation = os.Getenv(envPrefix + "PERSIST_LOCATION")
	}
	if c.CollectionName == "" {
		c.CollectionName = os.Getenv(envPrefix + "COLLECTION_NAME")
	}
	if c.DistanceMetric == "" {
		c.DistanceMetric = os.Getenv(envPrefix + "DISTANCE_METRIC")
	}
	if c.AutoCreateCollection == nil {
		if v, ok := envBool(envPrefix + "AUTO_CREATE_COLLECTION"); ok {
			c.AutoCreateCollection = &v
		}
	}
	if c.BatchSize == nil {
		if v, ok := envInt(envPrefix + "BATCH_SIZE"); ok {
			c.BatchSize = &v
		}
	}
	if c.MaxRetries == nil {
		if v, ok := envInt(envPrefix + "MAX_RETRIES"); ok {
			c.MaxRetries = &v
		}
	}
	if !c.AutoClearOnInit {
		if v, ok := envBool(envPrefix + "AUTO_CLEAR_ON_INIT"); ok {
			c.AutoClearOnInit = v
		}
	}
}

func envBool(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true, true
	default:
		return false, true
	}
}

func envInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks store configuration without touching any engine.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.collectionName()) == "" {
		return &ConfigError{Field: "collection_name", Reason: "cannot be empty"}
	}

	if _, err := vector.ParseMetric(c.distanceMetric()); err != nil {
		return &ConfigError{Field: "distance_metric", Reason: err.Error()}
	}

	switch c.EngineKind() {
	case EngineMemory, EngineOpenSearch:
	default:
		return &ConfigError{Field: "engine", Reason: fmt.Sprintf("unknown engine: %q", c.EngineKind())}
	}

	if c.BatchSize != nil && *c.BatchSize <= 0 {
		return &ConfigError{Field: "batch_size", Reason: fmt.Sprintf("must be positive, got: %d", *c.BatchSize)}
	}

	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return &ConfigError{Field: "max_retries", Reason: fmt.Sprintf("must be non-negative, got: %d", *c.MaxRetries)}
	}

	if c.PersistLocation != "" {
		if err := checkWritableDir(c.PersistLocation); err != nil {
			return &ConfigError{Field: "persist_location", Reason: err.Error()}
		}
	}

	return nil
}

// checkWritableDir verifies the path is a writable directory, creating
// it when missing.
func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("not a directory: %s", path)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("cannot create directory %s: %v", path, err)
		}
	default:
		return fmt.Errorf("cannot access %s: %v", path, err)
	}

	probe, err := os.CreateTemp(path, ".vecstore-probe-*")
	if err != nil {
		return fmt.Errorf("not writable: %s", path)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// EngineKind returns the configured engine kind, defaulting to the
// in-memory engine.
func (c *Config) EngineKind() string {
	if c.Engine == "" {
		return EngineMemory
	}
	return c.Engine
}

func (c *Config) collectionName() string {
	if c.CollectionName == "" {
		return DefaultCollectionName
	}
	return c.CollectionName
}

func (c *Config) distanceMetric() string {
	if c.DistanceMetric == "" {
		return string(vector.MetricCosine)
	}
	return c.DistanceMetric
}

func (c *Config) autoCreate() bool {
	if c.AutoCreateCollection == nil {
		return true
	}
	return *c.AutoCreateCollection
}

func (c *Config) batchSize() int {
	if c.BatchSize == nil {
		return DefaultBatchSize
	}
	return *c.BatchSize
}

func (c *Config) maxRetries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}
