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

// Config holds the simsearch service configuration.
type Config struct {
	HTTP       HTTPConfig              `yaml:"http"`
	Auth       AuthConfig              `yaml:"auth"`
	Logging    LoggingConfig           `yaml:"logging"`
	Ranking    RankingConfig           `yaml:"ranking"`
	Index      IndexConfig             `yaml:"index"`
	Embedding  EmbeddingConfig         `yaml:"embedding"`
	Sources    map[string]SourceConfig `yaml:"sources"`
	Attributes []AttributeConfig       `yaml:"attributes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
	// AdminKeys may also mount, remove and re-pivot attributes.
	// When empty, every API key may.
	AdminKeys []string `yaml:"admin_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RankingConfig holds rank aggregation settings.
type RankingConfig struct {
	DefaultK             int     `yaml:"default_k"`
	Decay                float64 `yaml:"decay"`
	InflationFactor      int     `yaml:"inflation_factor"`
	MaxDurationSec       int     `yaml:"max_duration_sec"`
	StreamBuffer         int     `yaml:"stream_buffer"`
	RandomAccessWorkers  int     `yaml:"random_access_workers"`
	RandomAccessPerRound int     `yaml:"random_access_per_round"`
}

// IndexConfig holds R-tree settings.
type IndexConfig struct {
	Fanout int      `yaml:"fanout"`
	Pivot  []string `yaml:"pivot"` // attributes of the pivot space, in coordinate order
}

// EmbeddingConfig holds the token vocabulary settings.
type EmbeddingConfig struct {
	Provider   string           `yaml:"provider"` // none, memory, openai
	Dimensions int              `yaml:"dimensions"`
	Delimiter  string           `yaml:"delimiter"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Cache      CacheConfig      `yaml:"cache"`
}

// DictionaryConfig points at an on-disk token -> vector file.
type DictionaryConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	Header    bool   `yaml:"header"`
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// CacheConfig selects a redis source to cache remote vectors in.
type CacheConfig struct {
	Source string `yaml:"source"`
	TTLSec int    `yaml:"ttl_sec"`
}

// SourceConfig holds one data source. Only the fields of its type apply.
type SourceConfig struct {
	Type string `yaml:"type"` // sqlite, redis, csv, parquet, rest

	// sqlite
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`

	// redis
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	// csv, parquet
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`

	// rest
	BaseURL           string  `yaml:"base_url"`
	Token             string  `yaml:"token"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// AttributeConfig describes an attribute mounted at startup.
type AttributeConfig struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"` // numerical, categorical, spatial, pivot
	Source  string   `yaml:"source"`
	Table   string   `yaml:"table"`
	Key     string   `yaml:"key"`
	Columns []string `yaml:"columns"`
	Metric  string   `yaml:"metric"` // euclidean, haversine (spatial only)
	Ingest  bool     `yaml:"ingest"`
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
		c.HTTP.WriteTimeoutSec = 75
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ranking.DefaultK <= 0 {
		c.Ranking.DefaultK = 10
	}
	if c.Ranking.Decay <= 0 {
		c.Ranking.Decay = 0.01
	}
	if c.Ranking.InflationFactor <= 0 {
		c.Ranking.InflationFactor = 1000
	}
	if c.Ranking.MaxDurationSec <= 0 {
		c.Ranking.MaxDurationSec = 60
	}
	if c.Ranking.StreamBuffer <= 0 {
		c.Ranking.StreamBuffer = 64
	}
	if c.Ranking.RandomAccessWorkers <= 0 {
		c.Ranking.RandomAccessWorkers = 8
	}
	if c.Ranking.RandomAccessPerRound <= 0 {
		c.Ranking.RandomAccessPerRound = 2
	}
	if c.Index.Fanout <= 0 {
		c.Index.Fanout = 16
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "none"
	}
	if c.Embedding.Delimiter == "" {
		c.Embedding.Delimiter = "_"
	}
	if c.Embedding.Dictionary.Delimiter == "" {
		c.Embedding.Dictionary.Delimiter = " "
	}
	if c.Embedding.OpenAI.Name == "" {
		c.Embedding.OpenAI.Name = "openai"
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 7 * 24 * 3600
	}
	for name, s := range c.Sources {
		if s.Type == "redis" && s.ReadinessTimeout <= 0 {
			s.ReadinessTimeout = 10
		}
		if s.Type == "csv" && s.Delimiter == "" {
			s.Delimiter = ","
		}
		if s.Type == "rest" && s.TimeoutSec <= 0 {
			s.TimeoutSec = 30
		}
		c.Sources[name] = s
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	for name, s := range c.Sources {
		if err := s.validate(); err != nil {
			return fmt.Errorf("sources.%s: %w", name, err)
		}
	}
	if err := c.Embedding.validate(c.Sources); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	mounted := make(map[string]struct{}, len(c.Attributes))
	for i, a := range c.Attributes {
		if a.Name == "" {
			return fmt.Errorf("attributes[%d].name is required", i)
		}
		if _, dup := mounted[a.Name]; dup {
			return fmt.Errorf("attributes[%d]: %q is mounted twice", i, a.Name)
		}
		mounted[a.Name] = struct{}{}
		if _, ok := c.Sources[a.Source]; !ok {
			return fmt.Errorf("attributes.%s: unknown source %q", a.Name, a.Source)
		}
		switch a.Kind {
		case "numerical", "categorical", "spatial":
		case "pivot":
			if c.Embedding.Provider == "none" {
				return fmt.Errorf("attributes.%s: pivot attributes need an embedding provider", a.Name)
			}
		default:
			return fmt.Errorf("attributes.%s.kind must be numerical, categorical, spatial or pivot, got %q", a.Name, a.Kind)
		}
	}
	for _, name := range c.Index.Pivot {
		if _, ok := mounted[name]; !ok {
			return fmt.Errorf("index.pivot: %q is not a mounted attribute", name)
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	switch s.Type {
	case "sqlite":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required")
		}
	case "redis":
		if len(s.Addrs) == 0 {
			return fmt.Errorf("addrs is required")
		}
	case "csv":
		if s.Path == "" {
			return fmt.Errorf("path is required")
		}
		if len([]rune(s.Delimiter)) != 1 {
			return fmt.Errorf("delimiter must be one character, got %q", s.Delimiter)
		}
	case "parquet":
		if s.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "rest":
		if s.BaseURL == "" {
			return fmt.Errorf("base_url is required")
		}
	default:
		return fmt.Errorf("type must be sqlite, redis, csv, parquet or rest, got %q", s.Type)
	}
	return nil
}

func (e EmbeddingConfig) validate(sources map[string]SourceConfig) error {
	switch e.Provider {
	case "none":
		return nil
	case "memory":
		if e.Dictionary.Path == "" {
			return fmt.Errorf("dictionary.path is required for the memory provider")
		}
		if len([]rune(e.Dictionary.Delimiter)) != 1 {
			return fmt.Errorf("dictionary.delimiter must be one character, got %q", e.Dictionary.Delimiter)
		}
	case "openai":
		if e.OpenAI.Model == "" || e.Dimensions <= 0 {
			return fmt.Errorf("openai provider needs openai.model and dimensions")
		}
	default:
		return fmt.Errorf("provider must be none, memory or openai, got %q", e.Provider)
	}
	if e.Cache.Source != "" {
		if s, ok := sources[e.Cache.Source]; !ok || s.Type != "redis" {
			return fmt.Errorf("cache.source %q must name a redis source", e.Cache.Source)
		}
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
