package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
)

// gormDocumentRepository 是 DocumentRepository 接口的 GORM 实现，表名为 documents。
type gormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository 创建 GORM 登记表并自动迁移表结构。
func NewGormDocumentRepository(db *gorm.DB) (DocumentRepository, error) {
	if err := db.AutoMigrate(&model.DocumentRecord{}); err != nil {
		return nil, fmt.Errorf("迁移 documents 表失败: %w", err)
	}
	return &gormDocumentRepository{db: db}, nil
}

func (r *gormDocumentRepository) Register(ctx context.Context, record *model.DocumentRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *gormDocumentRepository) Get(ctx context.Context, docID string) (*model.DocumentRecord, error) {
	var rec model.DocumentRecord
	err := r.db.WithContext(ctx).Where("doc_id = ?", docID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("document %s not found", docID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormDocumentRepository) Delete(ctx context.Context, docID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("doc_id = ?", docID).Delete(&model.DocumentRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormDocumentRepository) List(ctx context.Context) ([]model.DocumentRecord, error) {
	var records []model.DocumentRecord
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("doc_id ASC").Find(&records).Error
	return records, err
}

// Clear 以一条不带条件的 DELETE 清空 documents 表。
func (r *gormDocumentRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.DocumentRecord{}).Error
}
