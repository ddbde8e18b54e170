// Package feeders provides configuration feeders that fill a config struct
// from YAML files, TOML files and environment variables.
package feeders

import (
	"fmt"

	"github.com/golobby/config/v3/pkg/feeder"
	"gopkg.in/yaml.v3"
)

// YamlFeeder is a feeder that reads YAML files
type YamlFeeder struct {
	feeder.Yaml
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{feeder.Yaml{Path: filePath}}
}

// FeedKey reads a YAML file and decodes only the top-level section key into
// target. A missing key leaves target untouched.
func (y YamlFeeder) FeedKey(key string, target any) error {
	var allData map[string]any

	if err := y.Feed(&allData); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFeedFailed, y.Path, err)
	}

	value, exists := allData[key]
	if !exists {
		return nil
	}

	// Remarshal so yaml.v3 handles the conversions into the target type
	valueBytes, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err = yaml.Unmarshal(valueBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal value to target: %w", err)
	}

	return nil
}

// Source returns the file the feeder reads.
func (y YamlFeeder) Source() string {
	return y.Path
}
