// Package repository 定义了文档登记表的接口和实现。
package repository

import (
	"context"
	"sort"
	"strings"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/database"
)

// DocumentRepository 记录每次上传产生的文档（doc_id、类型、文件名、向量数、创建时间）。
type DocumentRepository interface {
	Register(ctx context.Context, record *model.DocumentRecord) error
	// Get 在记录不存在时返回 NotFound 错误。
	Get(ctx context.Context, docID string) (*model.DocumentRecord, error)
	// Delete 删除记录，返回记录此前是否存在。
	Delete(ctx context.Context, docID string) (bool, error)
	// List 按创建时间倒序返回全部记录。
	List(ctx context.Context) ([]model.DocumentRecord, error)
	// Clear 在一次写入中删除全部记录。
	Clear(ctx context.Context) error
}

// NewDocumentRepository 根据 registry.driver 创建登记表：json（默认）、mysql 或 sqlite。
func NewDocumentRepository(cfg config.RegistryConfig) (DocumentRepository, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "json":
		return NewJSONDocumentRepository(cfg.Path)
	case "mysql", "sqlite":
		db, err := database.OpenGorm(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewGormDocumentRepository(db)
	default:
		return nil, errs.Configuration("unknown registry.driver %q", cfg.Driver)
	}
}

func sortNewestFirst(records []model.DocumentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].DocID < records[j].DocID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
