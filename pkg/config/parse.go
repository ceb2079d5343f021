package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes and validates it.
// Fields missing from the YAML keep their Default values.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseFixtureYAML parses a Fixture from YAML bytes and validates it.
// This is used for APIs where the fixture is provided as payload (not via filesystem).
func ParseFixtureYAML(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture yaml: %w", err)
	}

	if err := validateFixture(&fixture); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}

	return &fixture, nil
}

// ParseFixtureYAMLString parses a Fixture from a YAML string and validates it.
func ParseFixtureYAMLString(yamlText string) (*Fixture, error) {
	return ParseFixtureYAML([]byte(yamlText))
}
