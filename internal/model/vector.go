package model

import "fmt"

// 向量元数据中使用的键。
const (
	MetaDocID      = "doc_id"
	MetaType       = "type"
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaPairIndex  = "pair_index"
	MetaQuestion   = "question"
	MetaAnswer     = "answer"
)

// Metadata 是随向量保存的标量元数据，至少包含 doc_id 和 type。
type Metadata map[string]interface{}

// String 以字符串形式读取一个元数据值，缺失时返回空串。
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// StoredVector 是向量索引中的一条记录。
type StoredVector struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// RetrievalHit 是一次检索返回的结果，Distance 为余弦距离。
type RetrievalHit struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Distance   float64  `json:"distance"`
	Similarity float64  `json:"similarity"`
}

// NewRetrievalHit 根据距离计算相似度。
func NewRetrievalHit(id, text string, meta Metadata, distance float64) RetrievalHit {
	return RetrievalHit{
		ID:         id,
		Text:       text,
		Metadata:   meta,
		Distance:   distance,
		Similarity: 1 - distance,
	}
}
