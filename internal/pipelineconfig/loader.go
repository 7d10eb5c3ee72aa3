package pipelineconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys fail the load so typos never silently fall back to defaults.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read pipeline config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes YAML bytes over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode pipeline config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the validated defaults when path is empty
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}
	cfg, _, err := Load(path)
	return cfg, err
}

// Hash returns the sha256 of the canonical JSON encoding of v.
// Structs and sorted map keys keep the encoding deterministic.
func Hash(v any) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// FeatureVersion stamps feature rows so a config change is visible in the
// warehouse without a schema change.
func (c *Config) FeatureVersion() string {
	h, err := Hash(c.Features)
	if err != nil {
		return "tf-unknown"
	}
	return "tf-" + h[:12]
}

// Staleness returns the staleness budget of a dataset group
func (c *Config) Staleness(group contracts.DatasetGroup) time.Duration {
	if hours, ok := c.Watermark.StalenessHours[string(group)]; ok {
		return time.Duration(hours) * time.Hour
	}
	return time.Duration(c.Watermark.DefaultStalenessHours) * time.Hour
}

// RecheckInterval returns the minimum interval between gap rechecks
func (c *Config) RecheckInterval() time.Duration {
	return time.Duration(c.Watermark.RecheckIntervalHours) * time.Hour
}

// ReportingLag returns how long after quarter end a filing is expected
func (c *Config) ReportingLag() time.Duration {
	return time.Duration(c.Watermark.ReportingLagDays) * 24 * time.Hour
}
