package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/embedding"
	"pai-policy-qa/pkg/log"
)

var (
	bucketVectors = []byte("vectors")
	// doc_id -> 该文档的向量 ID 集合（嵌套 bucket）
	bucketByDoc = []byte("by_doc")
)

// BoltStore 是基于 bbolt 的本地向量索引，检索时对全部向量做暴力余弦计算。
type BoltStore struct {
	db       *bbolt.DB
	embedder embedding.Client
}

// NewBoltStore 在 dir 下打开（或创建）vectors.db。
func NewBoltStore(dir string, embedder embedding.Client) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建向量目录失败: %w", err)
	}
	path := filepath.Join(dir, "vectors.db")
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开 bbolt 数据库失败: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("[VectorStore] bbolt 向量库已打开: %s", path)
	return &BoltStore{db: db, embedder: embedder}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
		return err
	}
	_, err := tx.CreateBucketIfNotExists(bucketByDoc)
	return err
}

func (s *BoltStore) AddTexts(ctx context.Context, texts []string, metadatas []model.Metadata) ([]string, error) {
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
	err = s.db.Update(func(tx *bbolt.Tx) error {
		vb := tx.Bucket(bucketVectors)
		byDoc := tx.Bucket(bucketByDoc)
		for i, text := range texts {
			ids[i] = uuid.NewString()
			data, err := json.Marshal(model.StoredVector{
				ID:        ids[i],
				Text:      text,
				Metadata:  metadatas[i],
				Embedding: vecs[i],
			})
			if err != nil {
				return err
			}
			if err := vb.Put([]byte(ids[i]), data); err != nil {
				return err
			}
			docBucket, err := byDoc.CreateBucketIfNotExists([]byte(metadatas[i].String(model.MetaDocID)))
			if err != nil {
				return err
			}
			if err := docBucket.Put([]byte(ids[i]), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("写入 bbolt 失败: %w", err)
	}
	return ids, nil
}

func (s *BoltStore) Query(ctx context.Context, text string, topK int) ([]model.RetrievalHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	q, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	var hits []model.RetrievalHit
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(_, v []byte) error {
			var sv model.StoredVector
			if err := json.Unmarshal(v, &sv); err != nil {
				return err
			}
			hits = append(hits, model.NewRetrievalHit(sv.ID, sv.Text, sv.Metadata, cosineDistance(q, sv.Embedding)))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("读取 bbolt 失败: %w", err)
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *BoltStore) DeleteByDocID(_ context.Context, docID string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		byDoc := tx.Bucket(bucketByDoc)
		docBucket := byDoc.Bucket([]byte(docID))
		if docBucket == nil {
			return nil
		}
		vb := tx.Bucket(bucketVectors)
		if err := docBucket.ForEach(func(k, _ []byte) error {
			deleted++
			return vb.Delete(k)
		}); err != nil {
			return err
		}
		return byDoc.DeleteBucket([]byte(docID))
	})
	if err != nil {
		return 0, fmt.Errorf("删除 doc_id=%s 的向量失败: %w", docID, err)
	}
	return deleted, nil
}

// Clear 在同一个事务中删除并重建两个 bucket。
func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketByDoc} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
		}
		return createBuckets(tx)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
