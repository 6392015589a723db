package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/embedding"
)

func newTestBoltStore(t *testing.T, dir string) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(dir, embedding.NewHashClient(64))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func meta(docID, typ string) model.Metadata {
	return model.Metadata{model.MetaDocID: docID, model.MetaType: typ}
}

func TestBoltStore_AddQueryDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t, t.TempDir())

	ids, err := s.AddTexts(ctx,
		[]string{"annual leave is twenty days", "remote work needs approval", "expense claims within thirty days"},
		[]model.Metadata{meta("doc-a", model.TypeDoc), meta("doc-a", model.TypeDoc), meta("doc-b", model.TypeDoc)},
	)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	hits, err := s.Query(ctx, "annual leave is twenty days", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, ids[0], hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.InDelta(t, 1, hits[0].Similarity, 1e-6)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	assert.Equal(t, "doc-a", hits[0].Metadata.String(model.MetaDocID))

	n, err := s.DeleteByDocID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err = s.Query(ctx, "annual leave is twenty days", 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	for _, h := range hits {
		assert.NotEqual(t, "doc-a", h.Metadata.String(model.MetaDocID))
	}

	n, err = s.DeleteByDocID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBoltStore_ClearAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBoltStore(dir, embedding.NewHashClient(64))
	require.NoError(t, err)
	_, err = s.AddTexts(ctx, []string{"persisted policy"}, []model.Metadata{meta("doc-p", model.TypeDoc)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = newTestBoltStore(t, dir)
	hits, err := s.Query(ctx, "persisted policy", 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "persisted policy", hits[0].Text)

	require.NoError(t, s.Clear(ctx))
	hits, err = s.Query(ctx, "persisted policy", 8)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// 清空后仍可继续写入
	_, err = s.AddTexts(ctx, []string{"after clear"}, []model.Metadata{meta("doc-q", model.TypeQA)})
	require.NoError(t, err)
}

func TestBoltStore_RejectsMismatchedBatch(t *testing.T) {
	s := newTestBoltStore(t, t.TempDir())
	_, err := s.AddTexts(context.Background(), []string{"a", "b"}, []model.Metadata{meta("d", model.TypeDoc)})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.AddTexts(context.Background(), []string{"a"}, []model.Metadata{{model.MetaType: model.TypeDoc}})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1}, []float32{1, 0}), 1e-9)
}
