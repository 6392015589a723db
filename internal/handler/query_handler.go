package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/service"
	"pai-policy-qa/pkg/log"
)

// QueryHandler 负责问答与检索调试接口。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest 定义了问答接口的请求体。
type QueryRequest struct {
	Query string `json:"query"`
}

// Query 回答一个政策问题。
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "Query", errs.Validation("Query must be a non-empty string"))
		return
	}

	answer, err := h.queryService.Answer(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, "Query", err)
		return
	}
	log.Infof("Query: answered from %s, similarity: %.4f", answer.Source, answer.Similarity)
	c.JSON(http.StatusOK, gin.H{"answer": answer.Text})
}

// Search 返回原始检索结果。
func (h *QueryHandler) Search(c *gin.Context) {
	query := c.Query("query")
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "0"))
	if err != nil {
		respondError(c, "Search", errs.Validation("topK must be an integer"))
		return
	}

	hits, err := h.queryService.Search(c.Request.Context(), query, topK)
	if err != nil {
		respondError(c, "Search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    hits,
	})
}

// Health 用于存活探测。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
