package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/embedding"
	"pai-policy-qa/pkg/log"
)

// esDocument 是写入 Elasticsearch 的文档结构。
type esDocument struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata model.Metadata `json:"metadata"`
	Vector   []float32      `json:"vector"`
}

// ESStore 使用 Elasticsearch dense_vector (cosine) 的 kNN 检索。
type ESStore struct {
	client    *elasticsearch.Client
	indexName string
	embedder  embedding.Client
}

// NewESStore 创建 ESStore，索引需事先通过 es.EnsureIndex 建好。
func NewESStore(client *elasticsearch.Client, indexName string, embedder embedding.Client) *ESStore {
	return &ESStore{client: client, indexName: indexName, embedder: embedder}
}

func (s *ESStore) AddTexts(ctx context.Context, texts []string, metadatas []model.Metadata) ([]string, error) {
	if err := checkBatch(texts, metadatas); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("向量化失败: %w", err)
	}

	ids := make([]string, len(texts))
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i, text := range texts {
		ids[i] = uuid.NewString()
		action := map[string]map[string]string{"index": {"_index": s.indexName, "_id": ids[i]}}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(esDocument{ID: ids[i], Text: text, Metadata: metadatas[i], Vector: vecs[i]}); err != nil {
			return nil, err
		}
	}

	req := esapi.BulkRequest{Body: &body, Refresh: "true"}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("批量索引到 Elasticsearch 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("批量索引返回错误: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("解析批量索引响应失败: %w", err)
	}
	if bulkResp.Errors {
		log.Errorf("[ESStore] 批量索引存在失败项, index: %s", s.indexName)
		return nil, fmt.Errorf("批量索引存在失败项")
	}
	return ids, nil
}

func (s *ESStore) Query(ctx context.Context, text string, topK int) ([]model.RetrievalHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	q, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	numCandidates := topK * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	query := map[string]interface{}{
		"size": topK,
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   q,
			"k":              topK,
			"num_candidates": numCandidates,
		},
		"_source": []string{"id", "text", "metadata"},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("Elasticsearch 检索失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch 检索返回错误: %s", res.String())
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Score  float64    `json:"_score"`
				Source esDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	hits := make([]model.RetrievalHit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, model.NewRetrievalHit(h.ID, h.Source.Text, h.Source.Metadata, scoreToDistance(h.Score)))
	}
	sortHits(hits)
	return hits, nil
}

// scoreToDistance 把 cosine 相似度下的 _score = (1 + cos) / 2 换算为余弦距离 1 - cos。
func scoreToDistance(score float64) float64 {
	d := 2 - 2*score
	if d < 0 {
		return 0
	}
	return d
}

func (s *ESStore) DeleteByDocID(ctx context.Context, docID string) (int, error) {
	body := fmt.Sprintf(`{"query":{"term":{"metadata.doc_id":%q}}}`, docID)
	return s.deleteByQuery(ctx, body)
}

// Clear 通过一次 match_all 的 delete_by_query 清空索引中的全部文档。
func (s *ESStore) Clear(ctx context.Context) error {
	_, err := s.deleteByQuery(ctx, `{"query":{"match_all":{}}}`)
	return err
}

func (s *ESStore) deleteByQuery(ctx context.Context, body string) (int, error) {
	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		strings.NewReader(body),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, fmt.Errorf("delete_by_query 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("delete_by_query 返回错误: %s", res.String())
	}
	var dr struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return 0, fmt.Errorf("解析 delete_by_query 响应失败: %w", err)
	}
	return dr.Deleted, nil
}

func (s *ESStore) Close() error {
	return nil
}
