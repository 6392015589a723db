// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/metrics"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/internal/vectorstore"
	"pai-policy-qa/pkg/llm"
	"pai-policy-qa/pkg/log"
)

const maxSearchTopK = 50

// 相似度由 1 - 距离 换算，比较阈值时容忍浮点舍入误差。
const similarityTolerance = 1e-9

// Answer 是一次问答的结果。Source 为 stored（直接返回已审核答案）或 llm。
type Answer struct {
	Text       string
	Source     string
	Similarity float64
}

// QAContext 是写入提示词的一组已审核问答。
type QAContext struct {
	Question string
	Answer   string
}

// QueryService 负责检索、置信度判定和提示词组装。
type QueryService interface {
	Answer(ctx context.Context, query string) (*Answer, error)
	Search(ctx context.Context, query string, topK int) ([]model.RetrievalHit, error)
}

type queryService struct {
	store     vectorstore.Store
	llmClient llm.Client
	cfg       config.RAGConfig
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(store vectorstore.Store, llmClient llm.Client, cfg config.RAGConfig) QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.MaxDocContext <= 0 {
		cfg.MaxDocContext = 3
	}
	if cfg.MaxQAContext <= 0 {
		cfg.MaxQAContext = 3
	}
	if cfg.NotFoundText == "" {
		cfg.NotFoundText = "Not in policy"
	}
	return &queryService{store: store, llmClient: llmClient, cfg: cfg}
}

// Answer 检索 top-K 结果并按类型划分。最高的问答命中相似度不低于阈值且带有答案时直接返回该答案，
// 不调用大模型；否则用问答与文档片段组装提示词交给大模型，原样返回其回答。
func (s *queryService) Answer(ctx context.Context, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("Query must be a non-empty string")
	}

	hits, err := s.store.Query(ctx, query, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("检索失败: %w", err)
	}
	qaHits, docHits := partitionHits(hits)
	log.Infof("[QueryService] 检索完成, qa: %d, doc: %d", len(qaHits), len(docHits))

	if len(qaHits) > 0 {
		top := qaHits[0]
		metrics.TopQASimilarity.Observe(top.Similarity)
		if answer := top.Metadata.String(model.MetaAnswer); answer != "" && top.Similarity+similarityTolerance >= s.cfg.QAConfidenceThreshold {
			log.Infof("[QueryService] 命中已审核答案, similarity: %.4f >= %.2f", top.Similarity, s.cfg.QAConfidenceThreshold)
			metrics.QueryAnswersTotal.WithLabelValues(metrics.AnswerStored).Inc()
			return &Answer{Text: answer, Source: metrics.AnswerStored, Similarity: top.Similarity}, nil
		}
	}

	qaContext := make([]QAContext, 0, s.cfg.MaxQAContext)
	for _, h := range qaHits {
		if len(qaContext) == s.cfg.MaxQAContext {
			break
		}
		question := h.Metadata.String(model.MetaQuestion)
		if question == "" {
			question = h.Text
		}
		qaContext = append(qaContext, QAContext{Question: question, Answer: h.Metadata.String(model.MetaAnswer)})
	}
	docContext := make([]string, 0, s.cfg.MaxDocContext)
	for _, h := range docHits {
		if len(docContext) == s.cfg.MaxDocContext {
			break
		}
		docContext = append(docContext, h.Text)
	}

	prompt := BuildPrompt(s.instruction(), qaContext, docContext, query)
	start := time.Now()
	text, err := s.llmClient.Complete(ctx, prompt)
	metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.QueryAnswersTotal.WithLabelValues(metrics.AnswerLLM).Inc()

	var topSim float64
	if len(qaHits) > 0 {
		topSim = qaHits[0].Similarity
	}
	return &Answer{Text: text, Source: metrics.AnswerLLM, Similarity: topSim}, nil
}

// Search 返回原始检索结果，用于排查召回质量。
func (s *queryService) Search(ctx context.Context, query string, topK int) ([]model.RetrievalHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("Query must be a non-empty string")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}
	return s.store.Query(ctx, query, topK)
}

func (s *queryService) instruction() string {
	if s.cfg.SystemPrompt != "" {
		return s.cfg.SystemPrompt
	}
	return DefaultInstruction(s.cfg.NotFoundText)
}

// partitionHits 按元数据 type 划分结果，问答命中按相似度降序排列，文档命中保持检索顺序。
func partitionHits(hits []model.RetrievalHit) (qa, doc []model.RetrievalHit) {
	for _, h := range hits {
		switch h.Metadata.String(model.MetaType) {
		case model.TypeQA:
			qa = append(qa, h)
		case model.TypeDoc:
			doc = append(doc, h)
		}
	}
	sort.SliceStable(qa, func(i, j int) bool {
		return qa[i].Similarity > qa[j].Similarity
	})
	return qa, doc
}

// DefaultInstruction 返回默认的约束说明：只依据上下文作答，无法回答时原样回复 notFound。
func DefaultInstruction(notFound string) string {
	return "You are a policy assistant. Answer the question using ONLY the context below. " +
		fmt.Sprintf("If the context does not contain the answer, reply exactly with %q and nothing else.", notFound)
}

// BuildPrompt 组装提示词：说明、Approved Q&A、Policy excerpts、用户问题。没有内容的部分整段省略。
func BuildPrompt(instruction string, qaPairs []QAContext, docChunks []string, query string) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")

	if len(qaPairs) > 0 {
		b.WriteString("Approved Q&A:\n")
		for _, qa := range qaPairs {
			b.WriteString("Q: ")
			b.WriteString(qa.Question)
			b.WriteString("\nA: ")
			b.WriteString(qa.Answer)
			b.WriteString("\n\n")
		}
	}

	if len(docChunks) > 0 {
		b.WriteString("Policy excerpts:\n")
		b.WriteString(strings.Join(docChunks, "\n---\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
