package simsearch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/db/csvfile"
	"github.com/kailas-cloud/simsearch/internal/db/parquetfile"
	dbRedis "github.com/kailas-cloud/simsearch/internal/db/redis"
	"github.com/kailas-cloud/simsearch/internal/db/rest"
	"github.com/kailas-cloud/simsearch/internal/db/sqldb"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/simsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/simsearch/internal/usecase/rank"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultFanout           = 16
)

// Client is the simsearch SDK entry point. It is safe for concurrent use.
type Client struct {
	sources map[string]db.Connector
	catalog *catalog.Catalog
	engine  *rank.Engine
	obs     *observer
}

// New opens every configured source and creates a Client.
// The provided context is used for the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{fanout: defaultFanout}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.sources) == 0 {
		return nil, errors.New("simsearch: at least one source required (use WithCSV, WithSQLite, ...)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]db.Connector, len(cfg.sources))
	for name, sc := range cfg.sources {
		conn, err := openSource(ctx, sc)
		if err != nil {
			closeAll(sources)
			return nil, fmt.Errorf("simsearch: source %s: %w", name, err)
		}
		sources[name] = conn
	}

	cat := catalog.New(sources, embedder, cfg.fanout, zap.NewNop())
	engine, err := rank.New(cat, rank.Config{
		Decay:           cfg.decay,
		InflationFactor: cfg.inflationFactor,
		MaxDuration:     cfg.timeBudget,
	}, zap.NewNop())
	if err != nil {
		closeAll(sources)
		return nil, fmt.Errorf("simsearch: create engine: %w", err)
	}

	return &Client{sources: sources, catalog: cat, engine: engine, obs: obs}, nil
}

func openSource(ctx context.Context, sc sourceConfig) (db.Connector, error) {
	switch sc.kind {
	case "csv":
		return csvfile.Open(csvfile.Config{Path: sc.path, Delimiter: sc.delimiter})
	case "parquet":
		return parquetfile.Open(parquetfile.Config{Path: sc.path})
	case "sqlite":
		return sqldb.NewStore(sqldb.Config{DSN: sc.dsn})
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: []string{sc.addr}, Password: sc.password})
		if err != nil {
			return nil, err
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		return s, nil
	case "rest":
		return rest.NewClient(rest.Config{BaseURL: sc.baseURL, Token: sc.token})
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.kind)
	}
}

// buildEmbedder returns nil when no vocabulary is configured; pivot
// attributes then fail to mount.
func buildEmbedder(cfg *clientConfig) (attribute.Embedder, error) {
	if cfg.vocabulary != nil {
		if cfg.vocabularyDim <= 0 {
			return nil, errors.New("simsearch: vocabulary dimension must be positive")
		}
		return embeddinguc.NewTransformer(cfg.vocabulary, cfg.vocabularyDim, ""), nil
	}
	if cfg.dictionaryPath == "" {
		return nil, nil
	}
	f, err := os.Open(filepath.Clean(cfg.dictionaryPath))
	if err != nil {
		return nil, fmt.Errorf("simsearch: open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()
	vocab, dim, err := embeddinguc.LoadDictionary(f, cfg.dictionaryComma, false)
	if err != nil {
		return nil, fmt.Errorf("simsearch: load dictionary: %w", err)
	}
	return embeddinguc.NewTransformer(vocab, dim, ""), nil
}

func closeAll(sources map[string]db.Connector) {
	for _, s := range sources {
		_ = s.Close()
	}
}

// Close releases the worker pool and every source.
func (c *Client) Close() {
	c.engine.Close()
	closeAll(c.sources)
}

// Ping checks every source.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	var errs []error
	for name, perr := range c.catalog.Ping(ctx) {
		if perr != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, perr))
		}
	}
	return errors.Join(errs...)
}

// Mount registers an attribute for ranking.
func (c *Client) Mount(ctx context.Context, a Attribute) (_ AttributeInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("mount", start, err) }()

	info, err := c.catalog.Mount(ctx, a.spec())
	if err != nil {
		return AttributeInfo{}, fmt.Errorf("mount %s: %w", a.Name, err)
	}
	return infoFromCatalog(info), nil
}

// Remove unmounts an attribute. Searches already running keep using it.
func (c *Client) Remove(name string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("remove", start, err) }()

	if err = c.catalog.Remove(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Attributes lists mounted attributes by name.
func (c *Client) Attributes() []AttributeInfo {
	infos := c.catalog.List()
	out := make([]AttributeInfo, len(infos))
	for i, info := range infos {
		out[i] = infoFromCatalog(info)
	}
	return out
}

// BuildPivot indexes the named ingested attributes in one shared space,
// replacing any previous pivot space.
func (c *Client) BuildPivot(ctx context.Context, names ...string) (_ PivotInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("build_pivot", start, err) }()

	space, err := c.catalog.BuildPivot(ctx, names)
	if err != nil {
		return PivotInfo{}, fmt.Errorf("build pivot: %w", err)
	}
	return PivotInfo{Attributes: space.Attributes(), Dim: space.Dim(), Entries: space.Len()}, nil
}

// Search starts a search query.
func (c *Client) Search() *SearchBuilder {
	return &SearchBuilder{client: c}
}
