// Package config holds the verification run configuration and the optional
// YAML run-spec file that can declare it alongside validator parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for the tunable knobs.
const (
	DefaultConcurrency = 5
	DefaultTimeoutSec  = 600
	DefaultRetries     = 3
	DefaultOutputPath  = "results.jsonl"
	DefaultSummaryPath = "summary.json"
)

// EnvAPIKey is the environment fallback for the provider credential.
const EnvAPIKey = "OPENAI_API_KEY"

// Config is the full configuration of one verification run.
type Config struct {
	Model   string
	BaseURL string
	APIKey  string

	SuitePath   string
	OutputPath  string
	SummaryPath string

	Concurrency int
	TimeoutSec  int
	Retries     int

	// ExtraBody is merged into every outgoing request.
	ExtraBody map[string]any

	// Incremental reuses prior successes from OutputPath and re-executes
	// only failed or new cases.
	Incremental bool
}

// Validate applies defaults and checks the fatal configuration errors that
// must abort before dispatch begins.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: base URL is required")
	}
	if c.SuitePath == "" {
		return fmt.Errorf("config: suite path is required")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = DefaultTimeoutSec
	}
	if c.Retries < 0 {
		c.Retries = DefaultRetries
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.SummaryPath == "" {
		c.SummaryPath = DefaultSummaryPath
	}
	return nil
}

// ParseExtraBody decodes the --extra-body JSON string into the config.
func (c *Config) ParseExtraBody(raw string) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &c.ExtraBody); err != nil {
		return fmt.Errorf("config: invalid extra-body JSON: %w", err)
	}
	return nil
}

// CheckSpec declares one validator binding in a run spec file.
type CheckSpec struct {
	Tag    string         `yaml:"check_type"`
	Params map[string]any `yaml:"params"`
}

// RunSpec is the YAML shape of a run spec file. Every field is optional;
// CLI flags override whatever the file sets.
type RunSpec struct {
	Model       string         `yaml:"model"`
	BaseURL     string         `yaml:"base_url"`
	Concurrency int            `yaml:"concurrency"`
	TimeoutSec  int            `yaml:"timeout"`
	Retries     int            `yaml:"retries"`
	ExtraBody   map[string]any `yaml:"extra_body"`
	Validators  []CheckSpec    `yaml:"validators"`
}

// LoadRunSpec reads and parses a YAML run spec file.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read run spec %s: %w", path, err)
	}
	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: parse run spec %s: %w", path, err)
	}
	return &spec, nil
}

// ApplySpec fills unset config fields from a run spec; values already set
// (by flags) win.
func (c *Config) ApplySpec(s *RunSpec) {
	if s == nil {
		return
	}
	if c.Model == "" {
		c.Model = s.Model
	}
	if c.BaseURL == "" {
		c.BaseURL = s.BaseURL
	}
	if c.Concurrency == 0 {
		c.Concurrency = s.Concurrency
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = s.TimeoutSec
	}
	if c.Retries < 0 && s.Retries > 0 {
		c.Retries = s.Retries
	}
	if c.ExtraBody == nil {
		c.ExtraBody = s.ExtraBody
	}
}
