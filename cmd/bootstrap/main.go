// Package main prepares the backing stores: relational schema and
// vector collections.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	"sermon-search-api/internal/infrastructure/persistence/postgres"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer func() { _ = pg.Close() }()

	fmt.Println("Migrating relational schema...")
	if err := pg.DB().WithContext(ctx).AutoMigrate(
		&entity.Series{},
		&entity.Sermon{},
		&entity.Segment{},
		&entity.SegmentLink{},
		&entity.SermonSummary{},
		&entity.SeriesSummary{},
		&entity.LLMUsageEvent{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	mv, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		log.Fatalf("failed to connect to milvus: %v", err)
	}
	defer func() { _ = mv.Close() }()

	fmt.Println("Ensuring vector collections...")
	if err := milvus.NewRepository(mv).EnsureCollections(ctx); err != nil {
		log.Fatalf("failed to create vector collections: %v", err)
	}

	fmt.Println("Bootstrap complete.")
}
