package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
	"pai-policy-qa/pkg/embedding"
	"pai-policy-qa/pkg/es"
)

// New 根据 vector_store.driver 创建向量索引：bolt（默认）、elasticsearch 或 pgvector。
func New(ctx context.Context, cfg *config.Config, embedder embedding.Client) (Store, error) {
	switch strings.ToLower(cfg.VectorStore.Driver) {
	case "", "bolt":
		return NewBoltStore(cfg.VectorStore.Dir, embedder)
	case "elasticsearch", "es":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("初始化 Elasticsearch 客户端失败: %w", err)
		}
		if err := es.EnsureIndex(ctx, client, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions); err != nil {
			return nil, fmt.Errorf("初始化 Elasticsearch 索引失败: %w", err)
		}
		return NewESStore(client, cfg.Elasticsearch.IndexName, embedder), nil
	case "pgvector", "postgres":
		return NewPgVectorStore(ctx, cfg.Postgres.DSN, cfg.Postgres.Table, cfg.Embedding.Dimensions, embedder)
	default:
		return nil, errs.Configuration("unknown vector_store.driver %q", cfg.VectorStore.Driver)
	}
}
