package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/config"
	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/db/csvfile"
	"github.com/kailas-cloud/simsearch/internal/db/parquetfile"
	dbRedis "github.com/kailas-cloud/simsearch/internal/db/redis"
	"github.com/kailas-cloud/simsearch/internal/db/rest"
	"github.com/kailas-cloud/simsearch/internal/db/sqldb"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	logpkg "github.com/kailas-cloud/simsearch/internal/logger"
	"github.com/kailas-cloud/simsearch/internal/metrics"
	"github.com/kailas-cloud/simsearch/internal/repository/vocabcache"
	chiTransport "github.com/kailas-cloud/simsearch/internal/transport/chi"
	openaiVocab "github.com/kailas-cloud/simsearch/internal/transport/openai"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/simsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/simsearch/internal/usecase/health"
	"github.com/kailas-cloud/simsearch/internal/usecase/rank"
	"github.com/kailas-cloud/simsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting simsearch API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("sources", len(cfg.Sources)),
		zap.Int("attributes", len(cfg.Attributes)),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterVocabularyMetrics()

	ctx := context.Background()

	sources, redisStores, err := openSources(ctx, cfg.Sources, logger)
	if err != nil {
		logger.Fatal("Failed to open data sources", zap.Error(err))
	}
	defer func() {
		for name, s := range sources {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close source", zap.String("source", name), zap.Error(err))
			}
		}
	}()

	embedder, embeddingHealth, err := buildEmbedder(cfg.Embedding, redisStores, logger)
	if err != nil {
		logger.Fatal("Failed to build embedder", zap.Error(err))
	}

	cat := catalog.New(sources, embedder, cfg.Index.Fanout, logger)
	for _, a := range cfg.Attributes {
		info, err := cat.Mount(ctx, catalog.Spec{
			Name:         a.Name,
			Kind:         attribute.Kind(a.Kind),
			Source:       a.Source,
			Table:        a.Table,
			KeyColumn:    a.Key,
			ValueColumns: a.Columns,
			Metric:       attribute.Metric(a.Metric),
			Ingest:       a.Ingest,
		})
		if err != nil {
			logger.Fatal("Failed to mount attribute", zap.String("attribute", a.Name), zap.Error(err))
		}
		logger.Info("Mounted attribute",
			zap.String("attribute", info.Name),
			zap.String("kind", string(info.Kind)),
			zap.Bool("indexed", info.Indexed),
			zap.Int("entries", info.Entries),
		)
	}
	if len(cfg.Index.Pivot) > 0 {
		space, err := cat.BuildPivot(ctx, cfg.Index.Pivot)
		if err != nil {
			logger.Fatal("Failed to build pivot space", zap.Strings("attributes", cfg.Index.Pivot), zap.Error(err))
		}
		logger.Info("Built pivot space", zap.Int("dim", space.Dim()), zap.Int("entries", space.Len()))
	}

	engine, err := rank.New(cat, rank.Config{
		Decay:                cfg.Ranking.Decay,
		InflationFactor:      cfg.Ranking.InflationFactor,
		MaxDuration:          time.Duration(cfg.Ranking.MaxDurationSec) * time.Second,
		StreamBuffer:         cfg.Ranking.StreamBuffer,
		RandomAccessWorkers:  cfg.Ranking.RandomAccessWorkers,
		RandomAccessPerRound: cfg.Ranking.RandomAccessPerRound,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ranking engine", zap.Error(err))
	}
	defer engine.Close()

	healthSvc := healthuc.New(cat, embeddingHealth, healthuc.DefaultTimeout)
	server := chiTransport.NewServer(engine, cat, healthSvc, cfg.Ranking.DefaultK, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, cfg.Auth.AdminKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openSources connects every configured source. Redis stores are also
// returned by name so the vocabulary cache can share a connection.
func openSources(
	ctx context.Context,
	cfgs map[string]config.SourceConfig,
	logger *zap.Logger,
) (map[string]db.Connector, map[string]*dbRedis.Store, error) {
	sources := make(map[string]db.Connector, len(cfgs))
	redisStores := make(map[string]*dbRedis.Store)
	for name, sc := range cfgs {
		conn, err := openSource(ctx, sc)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, nil, fmt.Errorf("source %s: %w", name, err)
		}
		if rs, ok := conn.(*dbRedis.Store); ok {
			redisStores[name] = rs
		}
		sources[name] = conn
		logger.Info("Opened source", zap.String("source", name), zap.String("type", sc.Type))
	}
	return sources, redisStores, nil
}

func openSource(ctx context.Context, sc config.SourceConfig) (db.Connector, error) {
	switch sc.Type {
	case "sqlite":
		return sqldb.NewStore(sqldb.Config{DSN: sc.DSN, MaxOpenConns: sc.MaxOpenConns})
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: sc.Addrs, Password: sc.Password})
		if err != nil {
			return nil, err
		}
		if err := store.WaitForReady(ctx, time.Duration(sc.ReadinessTimeout)*time.Second); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case "csv":
		return csvfile.Open(csvfile.Config{Path: sc.Path, Delimiter: []rune(sc.Delimiter)[0]})
	case "parquet":
		return parquetfile.Open(parquetfile.Config{Path: sc.Path})
	case "rest":
		return rest.NewClient(rest.Config{
			BaseURL:           sc.BaseURL,
			Token:             sc.Token,
			Timeout:           time.Duration(sc.TimeoutSec) * time.Second,
			RequestsPerSecond: sc.RequestsPerSecond,
			Burst:             sc.Burst,
		})
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.Type)
	}
}

// buildEmbedder assembles the token vocabulary chain:
// memory dictionary, or OpenAI -> Redis cache -> RemoteVocabulary.
// A nil embedder leaves pivot attributes unavailable.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	redisStores map[string]*dbRedis.Store,
	logger *zap.Logger,
) (attribute.Embedder, healthuc.EmbeddingChecker, error) {
	switch cfg.Provider {
	case "memory":
		f, err := os.Open(filepath.Clean(cfg.Dictionary.Path))
		if err != nil {
			return nil, nil, fmt.Errorf("open dictionary: %w", err)
		}
		defer func() { _ = f.Close() }()
		vocab, dim, err := embeddinguc.LoadDictionary(f, []rune(cfg.Dictionary.Delimiter)[0], cfg.Dictionary.Header)
		if err != nil {
			return nil, nil, fmt.Errorf("load dictionary: %w", err)
		}
		logger.Info("Loaded dictionary", zap.Int("tokens", len(vocab)), zap.Int("dim", dim))
		return embeddinguc.NewTransformer(vocab, dim, cfg.Delimiter), nil, nil

	case "openai":
		base := openaiVocab.NewVocabulary(&openaiVocab.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.OpenAI.Name,
			Logger:     logger,
		})
		var vectorizer embeddinguc.Vectorizer = base
		if cfg.Cache.Source != "" {
			vectorizer = vocabcache.New(base, redisStores[cfg.Cache.Source], cfg.OpenAI.Model,
				time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.VocabularyCacheTotal, logger)
		}
		vocab := embeddinguc.NewRemoteVocabulary(vectorizer, cfg.OpenAI.Name, cfg.OpenAI.Model, cfg.Dimensions, logger)
		return embeddinguc.NewTransformer(vocab, cfg.Dimensions, cfg.Delimiter), base, nil

	default:
		return nil, nil, nil
	}
}
