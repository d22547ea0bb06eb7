package config

import (
	"bytes"
	"fmt"
	"os"
)

// YAMLProvider loads a read-only configuration file
type YAMLProvider struct {
	filename string
}

func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// LoadConfig reads the file, applies defaults for absent keys and
// DAYLIGHT_* environment overrides
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	raw, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", y.filename, err)
	}

	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", y.filename, err)
	}
	return decode(v)
}

func (y *YAMLProvider) IsReadOnly() bool { return true }

func (y *YAMLProvider) Close() error { return nil }
