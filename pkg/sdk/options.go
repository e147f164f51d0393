package simsearch

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Vocabulary maps a token to its embedding vector.
type Vocabulary interface {
	Lookup(ctx context.Context, token string) ([]float64, bool)
}

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type sourceConfig struct {
	kind      string // csv, parquet, sqlite, redis, rest
	path      string
	delimiter rune
	dsn       string
	addr      string
	password  string
	baseURL   string
	token     string
}

type clientConfig struct {
	sources map[string]sourceConfig

	vocabulary      Vocabulary
	vocabularyDim   int
	dictionaryPath  string
	dictionaryComma rune

	decay           float64
	inflationFactor int
	timeBudget      time.Duration
	fanout          int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func (c *clientConfig) addSource(name string, s sourceConfig) {
	if c.sources == nil {
		c.sources = make(map[string]sourceConfig)
	}
	c.sources[name] = s
}

// WithCSV adds a delimited text file with a header row as source name.
func WithCSV(name, path string, delimiter rune) Option {
	return optionFunc(func(c *clientConfig) {
		c.addSource(name, sourceConfig{kind: "csv", path: path, delimiter: delimiter})
	})
}

// WithParquet adds a Parquet file as source name.
func WithParquet(name, path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addSource(name, sourceConfig{kind: "parquet", path: path})
	})
}

// WithSQLite adds a SQLite database as source name.
func WithSQLite(name, dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addSource(name, sourceConfig{kind: "sqlite", dsn: dsn})
	})
}

// WithRedis adds a Redis instance holding one hash per entity as source name.
func WithRedis(name, addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addSource(name, sourceConfig{kind: "redis", addr: addr, password: password})
	})
}

// WithREST adds an HTTP row service as source name.
func WithREST(name, baseURL, token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addSource(name, sourceConfig{kind: "rest", baseURL: baseURL, token: token})
	})
}

// WithVocabulary sets the token vocabulary used by pivot attributes.
func WithVocabulary(v Vocabulary, dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vocabulary = v
		c.vocabularyDim = dim
	})
}

// WithDictionaryFile loads the vocabulary from a "token v1 v2 ..." file.
func WithDictionaryFile(path string, comma rune) Option {
	return optionFunc(func(c *clientConfig) {
		c.dictionaryPath = path
		c.dictionaryComma = comma
	})
}

// WithDecay sets the default similarity decay. Default: 0.01.
func WithDecay(decay float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.decay = decay
	})
}

// WithTimeBudget bounds the ranking time of one search. Default: 60s.
func WithTimeBudget(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeBudget = d
	})
}

// WithInflationFactor caps sorted-access rounds at k * factor. Default: 1000.
func WithInflationFactor(factor int) Option {
	return optionFunc(func(c *clientConfig) {
		c.inflationFactor = factor
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// WithIndexFanout sets the R-tree node capacity. Default: 16.
func WithIndexFanout(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.fanout = n
	})
}
