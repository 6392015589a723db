// Package embedding 提供文本向量化客户端：兼容 OpenAI 的远程接口、本地特征哈希以及 Redis 缓存装饰器。
package embedding

import (
	"context"
	"fmt"
	"strings"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
)

// Client defines the interface for an embedding client.
type Client interface {
	// CreateEmbedding 返回单条文本的向量。
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// CreateEmbeddings 批量向量化，结果与输入一一对应。
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	// Name 标识模型，用于缓存键和日志。
	Name() string
}

// NewClient 根据配置中的 provider 创建向量化客户端。
func NewClient(cfg config.EmbeddingConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "hash":
		return NewHashClient(cfg.Dimensions), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, errs.Configuration("embedding.api_key is required for provider %q", cfg.Provider)
		}
		return NewOpenAIClient(cfg), nil
	default:
		return nil, errs.Configuration("unknown embedding provider %q", cfg.Provider)
	}
}

func singleFromBatch(ctx context.Context, c Client, text string) ([]float32, error) {
	vecs, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}
