// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
	"pai-policy-qa/pkg/log"
)

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 发送一条 user 消息，返回去除首尾空白后的回答文本。
	Complete(ctx context.Context, prompt string) (string, error)
}

type perplexityClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewClient 创建调用 Perplexity（OpenAI 兼容）chat/completions 接口的客户端。
// 缺少 API Key 时不报错，推迟到真正需要生成回答时再返回错误。
func NewClient(cfg config.LLMConfig) Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &perplexityClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *perplexityClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errs.ExternalService("PERPLEXITY_API_KEY is not set. Please configure it in your .env file.")
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.cfg.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.cfg.Generation.MaxTokens,
		Temperature: float32(c.cfg.Generation.Temperature),
		TopP:        float32(c.cfg.Generation.TopP),
	}

	log.Infof("[LLMClient] 调用 chat/completions, model: %s, prompt_len: %d", c.cfg.Model, len(prompt))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			log.Errorf("[LLMClient] Perplexity API 返回错误, status: %d, message: %s", apiErr.HTTPStatusCode, apiErr.Message)
		case errors.As(err, &reqErr):
			log.Errorf("[LLMClient] Perplexity API 返回非 200 状态码: %d", reqErr.HTTPStatusCode)
		default:
			log.Errorf("[LLMClient] 调用 Perplexity API 失败: %v", err)
		}
		return "", errs.Wrap(errs.KindExternalService, err, "Perplexity API error")
	}
	if len(resp.Choices) == 0 {
		return "", errs.ExternalService("Perplexity API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
