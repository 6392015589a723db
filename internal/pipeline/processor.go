// Package pipeline 定义了文档入库的核心流程：提取、分类、切分/解析、向量化存储与登记。
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/metrics"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/internal/repository"
	"pai-policy-qa/internal/vectorstore"
	"pai-policy-qa/pkg/kafka"
	"pai-policy-qa/pkg/log"
	"pai-policy-qa/pkg/storage"
)

// IngestResult 是一次上传入库的结果。DocID 为空表示没有可入库的内容。
type IngestResult struct {
	DocID    string `json:"doc_id"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Count    int    `json:"count"`
}

// Processor 封装了文件处理的所有依赖和逻辑。
// 入库与删除持有读锁，Clear 持有写锁，保证清空时没有进行中的写入。
type Processor struct {
	mu        sync.RWMutex
	extractor Extractor
	chunker   *Chunker
	parser    QAParser
	store     vectorstore.Store
	repo      repository.DocumentRepository
	archive   storage.Archive
	events    kafka.EventPublisher
}

// NewProcessor 创建一个新的 Processor 实例。archive 与 events 可为 nil。
func NewProcessor(
	extractor Extractor,
	chunker *Chunker,
	parser QAParser,
	store vectorstore.Store,
	repo repository.DocumentRepository,
	archive storage.Archive,
	events kafka.EventPublisher,
) *Processor {
	if archive == nil {
		archive = storage.NopArchive{}
	}
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Processor{
		extractor: extractor,
		chunker:   chunker,
		parser:    parser,
		store:     store,
		repo:      repo,
		archive:   archive,
		events:    events,
	}
}

// IngestFile 把文件作为普通文档入库：提取、切分、写入向量并登记。
// 提取后没有可用分块时返回 ("", 0, nil)，不做任何登记。
func (p *Processor) IngestFile(ctx context.Context, data []byte, filename string) (string, int, error) {
	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		return "", 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ingestDocument(ctx, text, filename, data)
}

// IngestQAText 把文件作为问答集入库：只向量化问题，答案随元数据保存。没有解析出问答对时返回 ValidationError。
func (p *Processor) IngestQAText(ctx context.Context, data []byte, filename string) (string, int, error) {
	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		return "", 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ingestQA(ctx, p.parser.Parse(text, filename), filename, data)
}

// IngestUpload 是上传入口：校验扩展名，只提取一次文本，再按问答对数量决定走问答集还是普通文档。
func (p *Processor) IngestUpload(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	log.Infof("[Processor] 开始处理上传文件, FileName: %s, Size: %d", filename, len(data))
	if err := CheckExtension(filename); err != nil {
		return nil, err
	}

	log.Info("[Processor] 步骤1: 提取文本内容")
	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		log.Errorf("[Processor] 提取文本失败, FileName: %s, Error: %v", filename, err)
		return nil, err
	}
	log.Infof("[Processor] 步骤1: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	p.mu.RLock()
	defer p.mu.RUnlock()

	pairs := p.parser.Parse(text, filename)
	res := &IngestResult{Filename: filename}
	if len(pairs) >= QADocumentMinPairs {
		log.Infof("[Processor] 步骤2: 识别为问答集, 共 %d 个问答对", len(pairs))
		res.Type = model.TypeQA
		res.DocID, res.Count, err = p.ingestQA(ctx, pairs, filename, data)
	} else {
		log.Infof("[Processor] 步骤2: 识别为普通文档 (问答对 %d < %d)", len(pairs), QADocumentMinPairs)
		res.Type = model.TypeDoc
		res.DocID, res.Count, err = p.ingestDocument(ctx, text, filename, data)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Processor] 文件处理完成, FileName: %s, DocID: %s, Type: %s, Count: %d", filename, res.DocID, res.Type, res.Count)
	return res, nil
}

func (p *Processor) ingestDocument(ctx context.Context, text, filename string, data []byte) (string, int, error) {
	chunks := p.chunker.Chunks(text, filename)
	log.Infof("[Processor] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 不做登记, FileName: %s", filename)
		return "", 0, nil
	}

	docID := uuid.NewString()
	texts := make([]string, len(chunks))
	metas := make([]model.Metadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = model.Metadata{
			model.MetaSource:     c.SourceFilename,
			model.MetaChunkIndex: c.Index,
			model.MetaType:       model.TypeDoc,
			model.MetaDocID:      docID,
		}
	}
	if err := p.storeAndRegister(ctx, docID, model.TypeDoc, filename, texts, metas, data); err != nil {
		return "", 0, err
	}
	return docID, len(texts), nil
}

func (p *Processor) ingestQA(ctx context.Context, pairs []model.QAPair, filename string, data []byte) (string, int, error) {
	if len(pairs) == 0 {
		return "", 0, errs.Validation("no pairs found in %s", filename)
	}

	docID := uuid.NewString()
	texts := make([]string, len(pairs))
	metas := make([]model.Metadata, len(pairs))
	for i, qa := range pairs {
		texts[i] = qa.Question
		metas[i] = model.Metadata{
			model.MetaType:      model.TypeQA,
			model.MetaDocID:     docID,
			model.MetaSource:    filename,
			model.MetaPairIndex: qa.PairIndex,
			model.MetaQuestion:  qa.Question,
			model.MetaAnswer:    qa.Answer,
		}
	}
	if err := p.storeAndRegister(ctx, docID, model.TypeQA, filename, texts, metas, data); err != nil {
		return "", 0, err
	}
	return docID, len(texts), nil
}

// storeAndRegister 一次性写入整批向量，成功后再登记。写入失败时整个上传失败，不做回滚。
func (p *Processor) storeAndRegister(ctx context.Context, docID, docType, filename string, texts []string, metas []model.Metadata, data []byte) error {
	log.Infof("[Processor] 步骤4: 向量化并写入向量库, DocID: %s, 数量: %d", docID, len(texts))
	ids, err := p.store.AddTexts(ctx, texts, metas)
	if err != nil {
		log.Errorf("[Processor] 写入向量库失败, DocID: %s, Error: %v", docID, err)
		return fmt.Errorf("写入向量库失败: %w", err)
	}

	record := &model.DocumentRecord{
		DocID:     docID,
		Type:      docType,
		Filename:  filename,
		Count:     len(ids),
		CreatedAt: time.Now().UTC(),
	}
	log.Infof("[Processor] 步骤5: 登记文档, DocID: %s", docID)
	if err := p.repo.Register(ctx, record); err != nil {
		log.Errorf("[Processor] 登记文档失败, DocID: %s, Error: %v", docID, err)
		return fmt.Errorf("登记文档失败: %w", err)
	}

	if err := p.archive.Put(ctx, docID, filename, data); err != nil {
		log.Warnf("[Processor] 归档原始文件失败, DocID: %s, Error: %v", docID, err)
	}
	p.publish(ctx, model.DocumentEvent{
		Event:    model.EventDocumentIngested,
		DocID:    docID,
		Type:     docType,
		Filename: filename,
		Count:    len(ids),
	})

	metrics.DocumentsIngestedTotal.WithLabelValues(docType).Inc()
	metrics.VectorsStoredTotal.WithLabelValues(docType).Add(float64(len(ids)))
	return nil
}

// DeleteDocument 先删除向量再删除登记记录，避免留下可被检索到的孤立向量。
// 登记记录不存在时仍会清理带该 doc_id 的向量，并返回 NotFound。
func (p *Processor) DeleteDocument(ctx context.Context, docID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, err := p.store.DeleteByDocID(ctx, docID)
	if err != nil {
		return fmt.Errorf("删除向量失败: %w", err)
	}
	existed, err := p.repo.Delete(ctx, docID)
	if err != nil {
		return fmt.Errorf("删除登记记录失败: %w", err)
	}
	if err := p.archive.RemoveDocument(ctx, docID); err != nil {
		log.Warnf("[Processor] 删除归档文件失败, DocID: %s, Error: %v", docID, err)
	}
	log.Infof("[Processor] 删除文档 DocID: %s, 向量数: %d, 登记存在: %t", docID, n, existed)

	if !existed {
		return errs.NotFound("document %s not found", docID)
	}
	p.publish(ctx, model.DocumentEvent{Event: model.EventDocumentDeleted, DocID: docID, Count: n})
	return nil
}

// Clear 清空向量库与登记表。持有写锁，期间不会有入库或删除交错执行。
func (p *Processor) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Info("[Processor] 清空向量库与登记表")
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("清空向量库失败: %w", err)
	}
	if err := p.repo.Clear(ctx); err != nil {
		return fmt.Errorf("清空登记表失败: %w", err)
	}
	if err := p.archive.RemoveAll(ctx); err != nil {
		log.Warnf("[Processor] 清空归档失败: %v", err)
	}
	p.publish(ctx, model.DocumentEvent{Event: model.EventStoreCleared})
	return nil
}

func (p *Processor) publish(ctx context.Context, event model.DocumentEvent) {
	if err := p.events.Publish(ctx, event); err != nil {
		log.Warnf("[Processor] 发布事件 %s 失败: %v", event.Event, err)
	}
}
