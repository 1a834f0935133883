package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Projection describes how much of an item a secondary index materializes.
type Projection string

const (
	// ProjectionAll indexes carry full items; reads need no follow-up.
	ProjectionAll Projection = "ALL"

	// ProjectionKeysOnly indexes carry key attributes only.
	ProjectionKeysOnly Projection = "KEYS_ONLY"

	// ProjectionInclude indexes carry keys plus a configured attribute subset.
	ProjectionInclude Projection = "INCLUDE"
)

// KeySchema names the attributes that address an item: exactly one hash
// attribute and at most one range attribute.
type KeySchema struct {
	Hash  string `yaml:"hash"`
	Range string `yaml:"range,omitempty"`
}

// Config holds the immutable table description a Repository is built from.
type Config struct {
	// TableName is the DynamoDB table name.
	TableName string `yaml:"table"`

	// Schema names the key attributes.
	Schema KeySchema `yaml:"schema"`

	// Indexes maps secondary index names to their projection type.
	// Reads through an index whose projection is not ALL re-fetch the
	// full item by key.
	Indexes map[string]Projection `yaml:"indexes,omitempty"`
}

// validate ensures the config addresses a table with a complete key schema.
func (c *Config) validate() error {
	if c.TableName == "" {
		return ErrMissingTableName
	}
	if c.Schema.Hash == "" {
		return ErrMissingHashKey
	}
	return nil
}

// LoadConfig reads a table configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
