package service

import (
	"context"

	"pai-policy-qa/internal/model"
	"pai-policy-qa/internal/pipeline"
	"pai-policy-qa/internal/repository"
)

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, data []byte, filename string) (*pipeline.IngestResult, error)
	ListDocuments(ctx context.Context) ([]model.DocumentRecord, error)
	DeleteDocument(ctx context.Context, docID string) error
	ClearAll(ctx context.Context) error
}

type documentService struct {
	processor *pipeline.Processor
	repo      repository.DocumentRepository
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(processor *pipeline.Processor, repo repository.DocumentRepository) DocumentService {
	return &documentService{processor: processor, repo: repo}
}

func (s *documentService) Upload(ctx context.Context, data []byte, filename string) (*pipeline.IngestResult, error) {
	return s.processor.IngestUpload(ctx, data, filename)
}

// ListDocuments 按创建时间倒序列出全部登记记录。
func (s *documentService) ListDocuments(ctx context.Context) ([]model.DocumentRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.DocumentRecord{}
	}
	return records, nil
}

func (s *documentService) DeleteDocument(ctx context.Context, docID string) error {
	return s.processor.DeleteDocument(ctx, docID)
}

func (s *documentService) ClearAll(ctx context.Context) error {
	return s.processor.Clear(ctx)
}
