package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/golobby/config/v3/pkg/feeder"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	feeder.Toml
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}

// FeedKey reads a TOML file and decodes only the table named key into
// target. A missing table leaves target untouched.
func (t TomlFeeder) FeedKey(key string, target any) error {
	var allData map[string]any

	if err := t.Feed(&allData); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFeedFailed, t.Path, err)
	}

	value, exists := allData[key]
	if !exists {
		return nil
	}

	valueBytes, err := toml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err = toml.Unmarshal(valueBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal value to target: %w", err)
	}

	return nil
}

// Source returns the file the feeder reads.
func (t TomlFeeder) Source() string {
	return t.Path
}
