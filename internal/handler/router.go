package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pai-policy-qa/internal/metrics"
	"pai-policy-qa/internal/middleware"
	"pai-policy-qa/internal/service"
)

// NewRouter 创建 gin 引擎并注册全部路由。maxUploadMB 为单个上传文件的大小上限。
func NewRouter(docService service.DocumentService, queryService service.QueryService, maxUploadMB int) *gin.Engine {
	r := gin.New() // 不带默认中间件
	r.Use(middleware.RequestLogger(), gin.Recovery(), metrics.PrometheusMiddleware())
	maxUploadBytes := int64(maxUploadMB) << 20
	if maxUploadBytes > 0 {
		r.MaxMultipartMemory = maxUploadBytes
	}

	docs := NewDocumentHandler(docService, maxUploadBytes)
	queries := NewQueryHandler(queryService)

	r.POST("/upload", docs.Upload)
	r.GET("/list", docs.List)
	r.DELETE("/delete/:doc_id", docs.Delete)
	r.POST("/clear", docs.Clear)

	r.POST("/query", queries.Query)
	r.GET("/search", queries.Search)

	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
