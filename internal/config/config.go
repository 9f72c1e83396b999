package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the agknow service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// KnowledgeConfig holds knowledge index and search settings.
type KnowledgeConfig struct {
	DefaultLanguage string `yaml:"default_language"`
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	ChunkSize      int `yaml:"chunk_size"`       // characters per chunk
	ChunkOverlap   int `yaml:"chunk_overlap"`    // characters of overlap between chunks
	MaxFileSizeMB  int `yaml:"max_file_size_mb"` // files larger than this are skipped
	Concurrency    int `yaml:"concurrency"`      // parallel embedding workers for bulk indexing
	MinChunkLength int `yaml:"min_chunk_length"` // chunks shorter than this are dropped
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // for the usage report
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"` // label for logs and metrics
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	Budget     BudgetConfig `yaml:"budget"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Knowledge.DefaultLanguage == "" {
		c.Knowledge.DefaultLanguage = "hr"
	}
	if c.Knowledge.DefaultPageSize <= 0 {
		c.Knowledge.DefaultPageSize = 20
	}
	if c.Knowledge.MaxPageSize <= 0 {
		c.Knowledge.MaxPageSize = 100
	}
	if c.Knowledge.MaxBatchSize <= 0 {
		c.Knowledge.MaxBatchSize = 100
	}
	if c.Knowledge.HNSWM <= 0 {
		c.Knowledge.HNSWM = 16
	}
	if c.Knowledge.HNSWEFConstruct <= 0 {
		c.Knowledge.HNSWEFConstruct = 200
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1500
	}
	if c.Ingest.ChunkOverlap <= 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		c.Ingest.MaxFileSizeMB = 25
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.MinChunkLength <= 0 {
		c.Ingest.MinChunkLength = 40
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
