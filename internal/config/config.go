package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/schemagen/internal/schema"
)

// Environment variables consulted by ApplyEnv
const (
	EnvStore  = "SCHEMAGEN_STORE"
	EnvPolicy = "SCHEMAGEN_POLICY"
	EnvName   = "SCHEMAGEN_NAME"
)

// Config represents the complete configuration for schemagen
type Config struct {
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	SchemaURI    string            `yaml:"schema_uri"`
	Inference    InferenceConfig   `yaml:"inference"`
	Input        InputConfig       `yaml:"input"`
	Store        StoreConfig       `yaml:"store"`
	Descriptions []DescriptionRule `yaml:"descriptions"`
	Telemetry    TelemetryConfig   `yaml:"telemetry"`
	Dev          DevConfig         `yaml:"dev"`
}

// InferenceConfig controls which observations end up in the schema
type InferenceConfig struct {
	Policy         string `yaml:"policy"` // "union" or "any"
	RecordBounds   bool   `yaml:"record_bounds"`
	RecordEnums    bool   `yaml:"record_enums"`
	MaxEnum        int    `yaml:"max_enum"`
	RecordExamples bool   `yaml:"record_examples"`
	MaxExamples    int    `yaml:"max_examples"`
	DetectFormats  bool   `yaml:"detect_formats"`
}

// InputConfig controls how input files are split into documents
type InputConfig struct {
	NDJSON bool `yaml:"ndjson"`
}

// StoreConfig controls persistence of running schemas between runs
type StoreConfig struct {
	DSN       string `yaml:"dsn"`  // SQLite path or postgres:// URL; empty disables the store
	Name      string `yaml:"name"` // key of the running schema inside the store
	CacheSize int    `yaml:"cache_size"`
}

// DescriptionRule attaches a description to every property whose name
// matches Pattern
type DescriptionRule struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`

	// compiled regex (not serialized)
	regex *regexp.Regexp
}

// TelemetryConfig controls OpenTelemetry instrumentation
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug bool `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		SchemaURI: schema.URL,
		Inference: InferenceConfig{
			Policy:         "union",
			RecordBounds:   true,
			RecordEnums:    false,
			MaxEnum:        10,
			RecordExamples: false,
			MaxExamples:    5,
			DetectFormats:  true,
		},
		Store: StoreConfig{
			CacheSize: 128,
		},
		Descriptions: []DescriptionRule{},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "schemagen",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Compile regex patterns
	if err := cfg.compilePatterns(); err != nil {
		return nil, fmt.Errorf("failed to compile patterns: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".schemagen.yml", ".schemagen.yaml", "schemagen.yml", "schemagen.yaml"}

	// Start from current directory
	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks values that YAML decoding cannot
func (c *Config) Validate() error {
	switch c.Inference.Policy {
	case "", "union", "any":
	default:
		return fmt.Errorf("invalid inference policy '%s': want 'union' or 'any'", c.Inference.Policy)
	}
	if c.Inference.MaxEnum < 0 {
		return fmt.Errorf("max_enum must not be negative")
	}
	if c.Inference.MaxExamples < 0 {
		return fmt.Errorf("max_examples must not be negative")
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store cache_size must not be negative")
	}
	return nil
}

// compilePatterns compiles all regex patterns in the config
func (c *Config) compilePatterns() error {
	for i := range c.Descriptions {
		rule := &c.Descriptions[i]
		regex, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("invalid description pattern '%s': %w", rule.Pattern, err)
		}
		rule.regex = regex
	}
	return nil
}

// MatchesField checks if this description rule matches the given property name
func (dr *DescriptionRule) MatchesField(fieldName string) bool {
	if dr.regex == nil {
		// Try to compile if not already compiled (fallback)
		regex, err := regexp.Compile(dr.Pattern)
		if err != nil {
			return false
		}
		dr.regex = regex
	}
	return dr.regex.MatchString(fieldName)
}

// FindDescription finds the description of the first rule matching the property name
func (c *Config) FindDescription(fieldName string) (string, bool) {
	for i := range c.Descriptions {
		if c.Descriptions[i].MatchesField(fieldName) {
			return c.Descriptions[i].Description, true
		}
	}
	return "", false
}

// ApplyEnv overrides store and policy settings from the environment. Values
// from a .env file are visible here once godotenv has loaded them.
func (c *Config) ApplyEnv() {
	if dsn := strings.TrimSpace(os.Getenv(EnvStore)); dsn != "" {
		c.Store.DSN = dsn
	}
	if name := strings.TrimSpace(os.Getenv(EnvName)); name != "" {
		c.Store.Name = name
	}
	if policy := strings.TrimSpace(os.Getenv(EnvPolicy)); policy != "" {
		c.Inference.Policy = policy
	}
}

// CLIOverrides carries command-line values; empty strings leave the config alone
type CLIOverrides struct {
	Title       string
	Description string
	Policy      string
	StoreDSN    string
	StoreName   string
	NDJSON      bool
	Debug       bool
}

// LoadConfigWithCLI loads config with CLI argument precedence:
// defaults < config file < environment < command line
func LoadConfigWithCLI(configPath string, cli CLIOverrides) (*Config, error) {
	// Start with defaults
	cfg := NewConfig()

	// Load config file if provided
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	cfg.ApplyEnv()

	if cli.Title != "" {
		cfg.Title = cli.Title
	}
	if cli.Description != "" {
		cfg.Description = cli.Description
	}
	if cli.Policy != "" {
		cfg.Inference.Policy = cli.Policy
	}
	if cli.StoreDSN != "" {
		cfg.Store.DSN = cli.StoreDSN
	}
	if cli.StoreName != "" {
		cfg.Store.Name = cli.StoreName
	}
	// Boolean flags can only switch features on
	if cli.NDJSON {
		cfg.Input.NDJSON = true
	}
	if cli.Debug {
		cfg.Dev.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
