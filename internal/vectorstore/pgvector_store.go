package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/embedding"
	"pai-policy-qa/pkg/log"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PgVectorStore 使用 PostgreSQL pgvector 扩展，距离运算符 <=> 即余弦距离。
type PgVectorStore struct {
	db       *sql.DB
	table    string
	embedder embedding.Client
}

// NewPgVectorStore 连接数据库并建表（vector(dims) + hnsw 索引）。
func NewPgVectorStore(ctx context.Context, dsn, table string, dims int, embedder embedding.Client) (*PgVectorStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("非法的表名: %q", table)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PgVectorStore{db: db, table: table, embedder: embedder}
	if err := s.migrate(ctx, dims); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Infof("[VectorStore] pgvector 表已就绪: %s (dims=%d)", table, dims)
	return s, nil
}

func (s *PgVectorStore) migrate(ctx context.Context, dims int) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, s.table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_doc_id ON %s (doc_id)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// AddTexts 在一个事务中插入整批向量。
func (s *PgVectorStore) AddTexts(ctx context.Context, texts []string, metadatas []model.Metadata) ([]string, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, doc_id, content, metadata, embedding) VALUES ($1, $2, $3, $4, $5)`, s.table))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(texts))
	for i, text := range texts {
		ids[i] = uuid.NewString()
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ids[i], metadatas[i].String(model.MetaDocID), text, meta, pgvector.NewVector(vecs[i])); err != nil {
			return nil, fmt.Errorf("insert vector: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (s *PgVectorStore) Query(ctx context.Context, text string, topK int) ([]model.RetrievalHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	q, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table), pgvector.NewVector(q), topK)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var hits []model.RetrievalHit
	for rows.Next() {
		var (
			id, content string
			metaRaw     []byte
			distance    float64
		)
		if err := rows.Scan(&id, &content, &metaRaw, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		meta := model.Metadata{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		// 零向量的余弦距离为 NaN
		if math.IsNaN(distance) {
			distance = 1
		}
		hits = append(hits, model.NewRetrievalHit(id, content, meta, distance))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

func (s *PgVectorStore) DeleteByDocID(ctx context.Context, docID string) (int, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.table), docID)
	if err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear 用一条 TRUNCATE 清空向量表。
func (s *PgVectorStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, s.table)); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Close() error {
	return s.db.Close()
}
