package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all planner configuration.
type Config struct {
	// Beam search
	Search SearchConfig `yaml:"search"`

	// Next-token oracle
	Oracle OracleConfig `yaml:"oracle"`

	// Connectivity graph and token vocabulary files
	Topology   TopologyConfig   `yaml:"topology"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`

	// Situation plans are checked against
	Validation ValidationConfig `yaml:"validation"`

	// Run persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SearchConfig configures the grammar-constrained beam search.
type SearchConfig struct {
	StartToken            int     `yaml:"start_token"`
	EndToken              int     `yaml:"end_token"`
	BeamWidth             int     `yaml:"beam_width"`
	Temperature           float64 `yaml:"temperature"`
	MaxSteps              int     `yaml:"max_steps"`
	MinFinishLength       int     `yaml:"min_finish_length"`
	RejectUnknownMetadata bool    `yaml:"reject_unknown_metadata"`
}

// OracleConfig selects and configures the scoring oracle.
type OracleConfig struct {
	Kind              string  `yaml:"kind"` // http, scripted
	URL               string  `yaml:"url"`
	Timeout           string  `yaml:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	FailureThreshold  uint32  `yaml:"failure_threshold"`
	Cooldown          string  `yaml:"cooldown"`
	VocabSize         int     `yaml:"vocab_size"`
	Script            []int   `yaml:"script,omitempty"` // scripted oracle only
}

// TopologyConfig points at a YAML adjacency file. Empty uses the built-in
// warehouse graph.
type TopologyConfig struct {
	Path string `yaml:"path"`
}

// VocabularyConfig points at a YAML vocabulary file. Empty uses the default
// vocabulary.
type VocabularyConfig struct {
	Path string `yaml:"path"`
}

// ValidationConfig is the default situation for validation.
type ValidationConfig struct {
	Action      string    `yaml:"action"` // PICK, PLACE, MOVE
	InitialNode float64   `yaml:"initial_node"`
	Occupied    []float64 `yaml:"occupied"`
	UseKernel   bool      `yaml:"use_kernel"`
}

// StoreConfig configures the SQLite plan store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			StartToken:      1,
			EndToken:        2,
			BeamWidth:       5,
			Temperature:     1.0,
			MaxSteps:        200,
			MinFinishLength: 100,
		},
		Oracle: OracleConfig{
			Kind:              "http",
			URL:               "http://localhost:8080/score",
			Timeout:           "30s",
			RequestsPerSecond: 50,
			Burst:             10,
			FailureThreshold:  5,
			Cooldown:          "30s",
		},
		Validation: ValidationConfig{
			Action:      "PICK",
			InitialNode: 1,
			UseKernel:   true,
		},
		Store: StoreConfig{
			Path: ".situated/plans.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("SITUATED_ORACLE_URL"); url != "" {
		c.Oracle.URL = url
	}
	if path := os.Getenv("SITUATED_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if level := os.Getenv("SITUATED_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
	if width := os.Getenv("SITUATED_BEAM_WIDTH"); width != "" {
		// Unparseable values are left for Validate to report on the file value.
		if n, err := strconv.Atoi(width); err == nil {
			c.Search.BeamWidth = n
		}
	}
}

// GetOracleTimeout returns the oracle request timeout as a duration.
func (c *Config) GetOracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetOracleCooldown returns how long the oracle circuit stays open.
func (c *Config) GetOracleCooldown() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Cooldown)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidOracleKinds lists the supported oracle kinds.
var ValidOracleKinds = []string{"http", "scripted"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	s := c.Search
	if s.BeamWidth < 1 {
		return fmt.Errorf("search.beam_width must be at least 1, got %d", s.BeamWidth)
	}
	if s.Temperature <= 0 {
		return fmt.Errorf("search.temperature must be positive, got %g", s.Temperature)
	}
	if s.MaxSteps < 1 {
		return fmt.Errorf("search.max_steps must be at least 1, got %d", s.MaxSteps)
	}
	if s.MinFinishLength < 0 {
		return fmt.Errorf("search.min_finish_length must not be negative, got %d", s.MinFinishLength)
	}
	if s.StartToken == s.EndToken {
		return fmt.Errorf("search.start_token and search.end_token must differ (both %d)", s.StartToken)
	}

	validKind := false
	for _, k := range ValidOracleKinds {
		if c.Oracle.Kind == k {
			validKind = true
			break
		}
	}
	if !validKind {
		return fmt.Errorf("invalid oracle kind: %s (valid: %v)", c.Oracle.Kind, ValidOracleKinds)
	}
	if c.Oracle.Kind == "http" && c.Oracle.URL == "" {
		return fmt.Errorf("oracle.url is required for the http oracle (set SITUATED_ORACLE_URL)")
	}

	switch strings.ToUpper(c.Validation.Action) {
	case "PICK", "PLACE", "MOVE":
	default:
		return fmt.Errorf("invalid validation action: %s", c.Validation.Action)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}

	return nil
}
