package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval engine.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Sessions   SessionConfig    `yaml:"sessions"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig controls how documents are split.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // max chunk length in characters
	ChunkOverlap int `yaml:"chunk_overlap"` // characters re-included from the previous chunk
}

// RetrievalConfig controls similarity search behavior.
type RetrievalConfig struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	MaxTopK         int     `yaml:"max_top_k"`
	OverFetchFactor int     `yaml:"over_fetch_factor"` // initial candidate multiplier for filtered search
	MinScore        float64 `yaml:"min_score"`         // drop results below this score (0 = disabled)
}

// Duration wraps time.Duration so YAML can use "30m" syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// SessionConfig controls conversational memory.
type SessionConfig struct {
	Timeout         Duration `yaml:"timeout"`
	MaxSessions     int      `yaml:"max_sessions"`
	MaxHistoryTurns int      `yaml:"max_history_turns"` // retained per session
	MaxContextTurns int      `yaml:"max_context_turns"` // included in the generation prompt
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g. "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // environment variable for the API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig holds generation provider configuration.
type GenerationConfig struct {
	Provider  string `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// CacheConfig controls the answer cache for session-less queries.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	MaxSize int      `yaml:"max_size"`
	TTL     Duration `yaml:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:     4,
			MaxTopK:         50,
			OverFetchFactor: 4,
			MinScore:        0,
		},
		Sessions: SessionConfig{
			Timeout:         Duration(30 * time.Minute),
			MaxSessions:     100,
			MaxHistoryTurns: 50,
			MaxContextTurns: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Generation: GenerationConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 100,
			TTL:     Duration(5 * time.Minute),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks ranges that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunking.chunk_overlap must not be negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.DefaultTopK < 1 || c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("retrieval.default_top_k must be in [1, %d], got %d",
			c.Retrieval.MaxTopK, c.Retrieval.DefaultTopK)
	}
	if c.Retrieval.OverFetchFactor < 1 {
		return fmt.Errorf("retrieval.over_fetch_factor must be positive, got %d", c.Retrieval.OverFetchFactor)
	}
	if c.Sessions.Timeout <= 0 {
		return fmt.Errorf("sessions.timeout must be positive, got %s", time.Duration(c.Sessions.Timeout))
	}
	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.MaxHistoryTurns < c.Sessions.MaxContextTurns {
		return fmt.Errorf("sessions.max_history_turns (%d) must not be smaller than max_context_turns (%d)",
			c.Sessions.MaxHistoryTurns, c.Sessions.MaxContextTurns)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragengine.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragengine.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragengine", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SnapshotPath returns the path of the index snapshot within dir.
func SnapshotPath(dir string) string {
	return filepath.Join(dir, ".ragengine", "index.db")
}

// EnsureDataDir ensures the .ragengine directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".ragengine"), 0755)
}
