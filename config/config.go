package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"intramind/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. INTRAMIND_EMBEDDING_MODEL.
const EnvPrefix = "INTRAMIND"

// Config holds all configuration for IntraMind.
type Config struct {
	Index      IndexConfig      `yaml:"index" toml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Retrieve   RetrieveConfig   `yaml:"retrieve" toml:"retrieve"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Auth       AuthConfig       `yaml:"auth" toml:"auth"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// IndexConfig holds ingestion configuration.
type IndexConfig struct {
	DataDir         string   `yaml:"data_dir" toml:"data_dir" split_words:"true"`
	MetadataFile    string   `yaml:"metadata_file" toml:"metadata_file" split_words:"true"`
	Path            string   `yaml:"path" toml:"path"`
	Includes        []string `yaml:"includes" toml:"includes"`
	Excludes        []string `yaml:"excludes" toml:"excludes"`
	ChunkSize       int      `yaml:"chunk_size" toml:"chunk_size" split_words:"true"`
	ChunkOverlap    int      `yaml:"chunk_overlap" toml:"chunk_overlap" split_words:"true"`
	Metric          string   `yaml:"metric" toml:"metric"`
	CleanWhitespace bool     `yaml:"clean_whitespace" toml:"clean_whitespace" split_words:"true"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" toml:"provider"` // "openai", "vertexai", "gemini", "hash"
	Model             string        `yaml:"model" toml:"model"`
	BaseURL           string        `yaml:"base_url" toml:"base_url" split_words:"true"`
	APIKeyEnv         string        `yaml:"api_key_env" toml:"api_key_env" envconfig:"API_KEY_ENV"`
	Project           string        `yaml:"project" toml:"project"`
	Location          string        `yaml:"location" toml:"location"`
	Dimension         int           `yaml:"dimension" toml:"dimension"`
	BatchSize         int           `yaml:"batch_size" toml:"batch_size" split_words:"true"`
	MaxRetries        int           `yaml:"max_retries" toml:"max_retries" split_words:"true"`
	RetryDelay        time.Duration `yaml:"retry_delay" toml:"retry_delay" split_words:"true"`
	Timeout           time.Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" toml:"requests_per_second" split_words:"true"`
	CacheSize         int           `yaml:"cache_size" toml:"cache_size" split_words:"true"`
	CacheTTL          time.Duration `yaml:"cache_ttl" toml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// RetrieveConfig holds query-time retrieval configuration.
type RetrieveConfig struct {
	TopK             int     `yaml:"top_k" toml:"top_k" split_words:"true"`
	MaxContextChunks int     `yaml:"max_context_chunks" toml:"max_context_chunks" split_words:"true"`
	MaxHistory       int     `yaml:"max_history" toml:"max_history" split_words:"true"`
	MaxDistance      float64 `yaml:"max_distance" toml:"max_distance" split_words:"true"` // Drop matches farther than this (0 = disabled)
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Provider          string        `yaml:"provider" toml:"provider"` // "openai", "vertexai", "gemini"
	Model             string        `yaml:"model" toml:"model"`
	BaseURL           string        `yaml:"base_url" toml:"base_url" split_words:"true"`
	APIKeyEnv         string        `yaml:"api_key_env" toml:"api_key_env" envconfig:"API_KEY_ENV"`
	Project           string        `yaml:"project" toml:"project"`
	Location          string        `yaml:"location" toml:"location"`
	Temperature       float32       `yaml:"temperature" toml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" toml:"max_tokens" split_words:"true"`
	MaxRetries        int           `yaml:"max_retries" toml:"max_retries" split_words:"true"`
	RetryDelay        time.Duration `yaml:"retry_delay" toml:"retry_delay" split_words:"true"`
	Timeout           time.Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" toml:"requests_per_second" split_words:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" split_words:"true"`
	WatchIndex      bool          `yaml:"watch_index" toml:"watch_index" split_words:"true"` // reload when the index file is replaced
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	JWTSecret     string `yaml:"jwt_secret" toml:"jwt_secret" envconfig:"JWT_SECRET"`
	Algorithm     string `yaml:"algorithm" toml:"algorithm"`
	RequiredGroup string `yaml:"required_group" toml:"required_group" split_words:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			DataDir:      "Data",
			MetadataFile: "document_metadata.yaml",
			Path:         filepath.Join("_vector_store", "index.db"),
			Includes:     []string{"**/*.txt", "**/*.md"},
			Excludes:     []string{"**/.git/**", "**/node_modules/**"},
			ChunkSize:    800,
			ChunkOverlap: 100,
			Metric:       "l2",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			BatchSize:  100,
			MaxRetries: 3,
			RetryDelay: time.Second,
			Timeout:    30 * time.Second,
			CacheSize:  256,
			CacheTTL:   10 * time.Minute,
		},
		Retrieve: RetrieveConfig{
			TopK:             4,
			MaxContextChunks: 3,
			MaxHistory:       4,
		},
		Generation: GenerationConfig{
			Provider:   "openai",
			Model:      "llama-3.1-8b-instant",
			BaseURL:    "https://api.groq.com/openai/v1",
			APIKeyEnv:  "GROQ_API_KEY",
			MaxRetries: 2,
			RetryDelay: time.Second,
			Timeout:    60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			WatchIndex:      true,
		},
		Auth: AuthConfig{
			Enabled:       true,
			Algorithm:     "HS256",
			RequiredGroup: "RAG-App-Users",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML or TOML file, then applies
// environment overrides. A missing file yields defaults plus env.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// LoadFromDir loads configuration from a directory. It reads a .env file
// when present and looks for intramind.yaml, intramind.toml, then
// .intramind/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	for _, name := range []string{
		"intramind.yaml",
		"intramind.toml",
		filepath.Join(".intramind", "config.yaml"),
	} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with INTRAMIND_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("env override: %w", err)
	}
	return nil
}

// Save writes the configuration as YAML, readable again by Load.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks invariants the pipelines rely on.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return domain.NewConfigurationError("config", "index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return domain.NewConfigurationError("config", "index.chunk_overlap must be in [0, %d), got %d", c.Index.ChunkSize, c.Index.ChunkOverlap)
	}
	switch c.Index.Metric {
	case "l2", "euclidean", "cosine":
	default:
		return domain.NewConfigurationError("config", "unknown index.metric %q", c.Index.Metric)
	}
	if c.Retrieve.TopK <= 0 {
		return domain.NewConfigurationError("config", "retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.MaxContextChunks <= 0 {
		return domain.NewConfigurationError("config", "retrieve.max_context_chunks must be positive, got %d", c.Retrieve.MaxContextChunks)
	}
	if c.Retrieve.MaxHistory < 0 {
		return domain.NewConfigurationError("config", "retrieve.max_history must not be negative, got %d", c.Retrieve.MaxHistory)
	}
	if c.Retrieve.MaxDistance < 0 {
		return domain.NewConfigurationError("config", "retrieve.max_distance must not be negative, got %g", c.Retrieve.MaxDistance)
	}
	if strings.TrimSpace(c.Embedding.Model) == "" && c.Embedding.Provider != "hash" {
		return domain.NewConfigurationError("config", "embedding.model is required")
	}
	return nil
}

// Validate checks the auth section. Only the server needs it.
func (a AuthConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.JWTSecret == "" {
		return domain.NewConfigurationError("auth", "auth.jwt_secret is required when auth is enabled")
	}
	if a.Algorithm != "HS256" && a.Algorithm != "HS384" && a.Algorithm != "HS512" {
		return domain.NewConfigurationError("auth", "unsupported auth.algorithm %q", a.Algorithm)
	}
	return nil
}

// ResolvePath makes p absolute relative to dir unless it already is.
func ResolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
