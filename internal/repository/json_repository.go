package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
)

// jsonDocumentRepository 把全部记录保存在一个 JSON 文件中（doc_id -> 记录），每次变更整体重写。
// 读改写由互斥锁串行化，写入先落临时文件再 rename。
type jsonDocumentRepository struct {
	mu   sync.Mutex
	path string
}

// NewJSONDocumentRepository 创建基于 JSON 文件的登记表，文件不存在时写入空表。
func NewJSONDocumentRepository(path string) (DocumentRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建登记表目录失败: %w", err)
	}
	r := &jsonDocumentRepository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.save(map[string]model.DocumentRecord{}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *jsonDocumentRepository) load() (map[string]model.DocumentRecord, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]model.DocumentRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取登记表失败: %w", err)
	}
	records := map[string]model.DocumentRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析登记表失败: %w", err)
	}
	return records, nil
}

func (r *jsonDocumentRepository) save(records map[string]model.DocumentRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*.json")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入登记表失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("替换登记表失败: %w", err)
	}
	return nil
}

func (r *jsonDocumentRepository) Register(_ context.Context, record *model.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	records[record.DocID] = *record
	return r.save(records)
}

func (r *jsonDocumentRepository) Get(_ context.Context, docID string) (*model.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[docID]
	if !ok {
		return nil, errs.NotFound("document %s not found", docID)
	}
	return &rec, nil
}

func (r *jsonDocumentRepository) Delete(_ context.Context, docID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return false, err
	}
	if _, ok := records[docID]; !ok {
		return false, nil
	}
	delete(records, docID)
	return true, r.save(records)
}

func (r *jsonDocumentRepository) List(_ context.Context) ([]model.DocumentRecord, error) {
	r.mu.Lock()
	records, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.DocumentRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *jsonDocumentRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(map[string]model.DocumentRecord{})
}
