// Package vectorstore 封装向量索引：写入带元数据的文本、按余弦距离检索、按 doc_id 删除和整体清空。
package vectorstore

import (
	"context"
	"math"
	"sort"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
)

// Store 是向量索引的统一接口。文本的向量化在实现内部通过 embedding.Client 完成。
type Store interface {
	// AddTexts 写入文本及其元数据，返回新生成的向量 ID。
	AddTexts(ctx context.Context, texts []string, metadatas []model.Metadata) ([]string, error)
	// Query 返回与 text 最相近的 topK 条结果，按距离升序排列。
	Query(ctx context.Context, text string, topK int) ([]model.RetrievalHit, error)
	// DeleteByDocID 删除某次上传产生的全部向量，返回删除数量。
	DeleteByDocID(ctx context.Context, docID string) (int, error)
	// Clear 在一次操作中清空全部向量。
	Clear(ctx context.Context) error
	Close() error
}

func checkBatch(texts []string, metadatas []model.Metadata) error {
	if len(texts) != len(metadatas) {
		return errs.Validation("metadatas length must match texts length (%d != %d)", len(metadatas), len(texts))
	}
	for i, m := range metadatas {
		if m.String(model.MetaDocID) == "" {
			return errs.Validation("metadata %d is missing %s", i, model.MetaDocID)
		}
	}
	return nil
}

// cosineDistance 返回 1 - cos(a, b)。任一向量为零向量时距离为 1。
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

func sortHits(hits []model.RetrievalHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
}
