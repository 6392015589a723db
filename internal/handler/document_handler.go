package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/service"
)

// multipart 边界和表单头占用的额外字节
const multipartOverhead = 1 << 20

// DocumentHandler 负责上传、列出、删除和清空文档。
type DocumentHandler struct {
	docService     service.DocumentService
	maxUploadBytes int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。maxUploadBytes <= 0 表示不限制上传大小。
func NewDocumentHandler(docService service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{docService: docService, maxUploadBytes: maxUploadBytes}
}

// Upload 处理 multipart 上传，表单字段为 file。超过大小上限的文件返回 400。
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || (h.maxUploadBytes > 0 && c.Request.ContentLength > h.maxUploadBytes+multipartOverhead) {
			respondError(c, "Upload", h.tooLarge())
			return
		}
		respondError(c, "Upload", errs.Validation("file is required"))
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		respondError(c, "Upload", h.tooLarge())
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, "Upload", errs.Wrap(errs.KindIO, err, "Failed to open uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, "Upload", errs.Wrap(errs.KindIO, err, "Failed to read uploaded file"))
		return
	}

	filename := filepath.Base(fileHeader.Filename)
	res, err := h.docService.Upload(c.Request.Context(), data, filename)
	if err != nil {
		respondError(c, "Upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"filename": res.Filename,
		"type":     res.Type,
		"doc_id":   res.DocID,
		"count":    res.Count,
	})
}

func (h *DocumentHandler) tooLarge() error {
	return errs.Validation("File too large. Maximum upload size is %d MB", h.maxUploadBytes>>20)
}

// List 返回全部登记记录，最新的在前。
func (h *DocumentHandler) List(c *gin.Context) {
	records, err := h.docService.ListDocuments(c.Request.Context())
	if err != nil {
		respondError(c, "List", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Delete 删除一个文档的全部向量和登记记录。
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("doc_id")
	if err := h.docService.DeleteDocument(c.Request.Context(), docID); err != nil {
		respondError(c, "Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "doc_id": docID})
}

// Clear 清空向量库与登记表。
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.docService.ClearAll(c.Request.Context()); err != nil {
		respondError(c, "Clear", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
