package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
	"pai-policy-qa/pkg/log"
)

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *openai.Client
}

// NewOpenAIClient 创建调用 OpenAI 兼容 /embeddings 接口的客户端。
func NewOpenAIClient(cfg config.EmbeddingConfig) Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *openAICompatibleClient) Name() string {
	return "openai:" + c.cfg.Model
}

func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return singleFromBatch(ctx, c, text)
}

// CreateEmbeddings 一次请求完成整批向量化，按响应中的 index 还原顺序。
func (c *openAICompatibleClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch: %d", c.cfg.Model, len(texts))

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.cfg.Model),
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, errs.Wrap(errs.KindExternalService, err, "embedding api call failed")
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.ExternalService("embedding api returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			return nil, errs.ExternalService("embedding api returned malformed item at index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取向量, 维度: %d", len(out[0]))
	return out, nil
}
