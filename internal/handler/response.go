// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"github.com/gin-gonic/gin"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/pkg/log"
)

// respondError 按错误分类写出状态码，响应体只携带顶层错误信息。
func respondError(c *gin.Context, op string, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		log.Error(op+": failed", err)
	} else {
		log.Warnf("%s: rejected: %v", op, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": err.Error(),
	})
}
