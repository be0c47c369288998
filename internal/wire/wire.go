// Package wire assembles the application object graph. Construction is
// explicit and ordered; the returned cleanup closes resources in
// reverse order.
package wire

import (
	"context"
	"fmt"
	"time"

	"sermon-search-api/internal/application/indexing"
	"sermon-search-api/internal/application/linking"
	"sermon-search-api/internal/application/search"
	"sermon-search-api/internal/application/segmenter"
	"sermon-search-api/internal/application/summary"
	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/scripture"
	"sermon-search-api/internal/infrastructure/embedding"
	"sermon-search-api/internal/infrastructure/llm"
	"sermon-search-api/internal/infrastructure/messaging"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	"sermon-search-api/internal/infrastructure/persistence/postgres"
	redisinfra "sermon-search-api/internal/infrastructure/persistence/redis"
	"sermon-search-api/internal/interfaces/http/handler"
	"sermon-search-api/internal/interfaces/http/router"
	"sermon-search-api/pkg/logger"
)

// Container holds the assembled application.
type Container struct {
	Config *config.Config

	Postgres *postgres.Client
	Redis    *redisinfra.Client
	Milvus   *milvus.Client

	Sermons   *postgres.SermonRepository
	Series    *postgres.SeriesRepository
	Segments  *postgres.SegmentRepository
	Links     *postgres.LinkRepository
	Summaries *postgres.SummaryRepository
	Vectors   *milvus.Repository

	Cache    *redisinfra.Cache
	Limiter  *redisinfra.RateLimiter
	Producer *messaging.Producer

	LLM      *llm.Client
	Pipeline *indexing.Pipeline
	Engine   *search.Engine
	Router   *search.Router
	Linker   *linking.Linker
	Summary  *summary.Service

	HTTPRouter *router.Router

	cleanups []func()
}

// New builds the container. On error, everything already opened is
// closed before returning.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	c.Postgres = pg
	c.onClose(func() {
		if err := pg.Close(); err != nil {
			logger.Warn(context.Background(), "closing postgres", "error", err.Error())
		}
	})

	rdb, err := redisinfra.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	c.Redis = rdb
	c.onClose(func() {
		if err := rdb.Close(); err != nil {
			logger.Warn(context.Background(), "closing redis", "error", err.Error())
		}
	})

	mv, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, fmt.Errorf("milvus: %w", err)
	}
	c.Milvus = mv
	c.onClose(func() {
		if err := mv.Close(); err != nil {
			logger.Warn(context.Background(), "closing milvus", "error", err.Error())
		}
	})

	c.Sermons = postgres.NewSermonRepository(pg)
	c.Series = postgres.NewSeriesRepository(pg)
	c.Segments = postgres.NewSegmentRepository(pg)
	c.Links = postgres.NewLinkRepository(pg)
	c.Summaries = postgres.NewSummaryRepository(pg)
	usageEvents := postgres.NewLLMUsageEventRepository(pg)
	tx := postgres.NewTxManager(pg)

	c.Vectors = milvus.NewRepository(mv)
	c.Cache = redisinfra.NewCache(rdb)
	c.Limiter = redisinfra.NewRateLimiter(rdb,
		cfg.Security.RateLimit.RequestsPerSecond+cfg.Security.RateLimit.Burst,
		time.Second)
	c.Producer = messaging.NewProducer(rdb.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	embedClient, err := embedding.NewClient(ctx, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	factory := llm.NewEinoFactory(cfg)
	backends, err := factory.Chain(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm backends: %w", err)
	}
	window := llm.NewSlidingWindow(
		cfg.LLM.RateLimit.RequestsPerMinute,
		cfg.LLM.RateLimit.TokensPerMinute,
		cfg.LLM.RateLimit.Window,
	)
	llmClient, err := llm.NewClient(backends, embedClient, window, llm.NewUsageTracker(),
		usageEvents, cfg.LLM.Retry, factory.ModelName)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	c.LLM = llmClient

	chunker, err := segmenter.New(segmenter.Config{
		TargetWords: cfg.Segmenter.TargetWords,
		MinWords:    cfg.Segmenter.MinWords,
		MaxWords:    cfg.Segmenter.MaxWords,
	})
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}

	c.Pipeline = indexing.NewPipeline(c.Sermons, c.Segments, tx, c.Vectors,
		llmClient, chunker, c.Cache)

	refs := scripture.NewRuleset(cfg.Linker.Language)
	scorer := search.NewScorer(cfg.Search.Scoring)
	c.Engine = search.NewEngine(c.Vectors, c.Segments, llmClient, scorer, refs, cfg.Search)
	c.Router = search.NewRouter(c.Engine, c.Vectors, llmClient, refs,
		search.DefaultMarkers(cfg.Linker.Language))

	rules := linking.NewRules(cfg.Linker.Language, refs)
	c.Linker = linking.NewLinker(c.Segments, c.Links, c.Vectors, rules, cfg.Linker)

	c.Summary = summary.NewService(c.Sermons, c.Segments, c.Summaries, c.Vectors, llmClient)

	c.HTTPRouter = router.New(cfg, router.Handlers{
		Health:  handler.NewHealthHandler(pg, rdb, mv),
		Search:  handler.NewSearchHandler(c.Engine, c.Router, cfg.Search),
		Sermon:  handler.NewSermonHandler(c.Series, c.Sermons, c.Pipeline, c.Producer),
		Link:    handler.NewLinkHandler(c.Linker, c.Segments, c.Producer),
		Summary: handler.NewSummaryHandler(c.Summary, c.Summaries),
		Usage:   handler.NewUsageHandler(llmClient),
	}, c.Limiter)

	ok = true
	return c, nil
}

func (c *Container) onClose(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// Close releases resources in reverse construction order.
func (c *Container) Close() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}
