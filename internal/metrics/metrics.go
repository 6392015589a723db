// Package metrics 定义 Prometheus 指标和 HTTP 指标中间件。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 回答来源标签。
const (
	AnswerStored = "stored"
	AnswerLLM    = "llm"
)

// HTTP 指标
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyqa_http_requests_total",
			Help: "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyqa_http_request_duration_seconds",
			Help:    "HTTP 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 检索问答指标
var (
	// QueryAnswersTotal 按回答来源统计：stored 为直接返回已审核答案，llm 为调用大模型生成。
	QueryAnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyqa_query_answers_total",
			Help: "按来源统计的回答数",
		},
		[]string{"source"},
	)

	// TopQASimilarity 每次查询中最高问答相似度的分布。
	TopQASimilarity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policyqa_top_qa_similarity",
			Help:    "查询命中的最高问答相似度",
			Buckets: []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
	)

	LLMRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policyqa_llm_request_duration_seconds",
			Help:    "大模型调用耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

// 入库指标
var (
	DocumentsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyqa_documents_ingested_total",
			Help: "按类型统计的入库文档数",
		},
		[]string{"type"},
	)

	VectorsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyqa_vectors_stored_total",
			Help: "按类型统计的写入向量数",
		},
		[]string{"type"},
	)
)
