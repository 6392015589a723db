package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/internal/repository"
	"pai-policy-qa/internal/vectorstore"
	"pai-policy-qa/pkg/embedding"
)

const sampleQA = "Q: What is Foo?\nA: Bar\nQ: What is Baz?\nA: Qux\nQ: Who approves leave?\nA: Your manager\n"

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.DocumentEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e model.DocumentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}

type fixture struct {
	proc   *Processor
	store  vectorstore.Store
	repo   repository.DocumentRepository
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.NewBoltStore(dir, embedding.NewHashClient(128))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo, err := repository.NewJSONDocumentRepository(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)

	chunker, err := NewChunker(500, 50)
	require.NoError(t, err)

	events := &recordingPublisher{}
	proc := NewProcessor(NewExtractor(nil), chunker, NewQAParser(), store, repo, nil, events)
	return &fixture{proc: proc, store: store, repo: repo, events: events}
}

func TestIngestUpload_RoutesQADocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.proc.IngestUpload(ctx, []byte(sampleQA), "sample_qa.txt")
	require.NoError(t, err)
	assert.Equal(t, model.TypeQA, res.Type)
	assert.Equal(t, 3, res.Count)
	assert.NotEmpty(t, res.DocID)

	rec, err := f.repo.Get(ctx, res.DocID)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Count)
	assert.Equal(t, "sample_qa.txt", rec.Filename)

	hits, err := f.store.Query(ctx, "What is Foo?", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "What is Foo?", hits[0].Text)
	assert.Equal(t, "Bar", hits[0].Metadata.String(model.MetaAnswer))
	assert.Equal(t, model.TypeQA, hits[0].Metadata.String(model.MetaType))
	assert.Equal(t, res.DocID, hits[0].Metadata.String(model.MetaDocID))

	assert.Equal(t, []string{model.EventDocumentIngested}, f.events.names())
}

func TestIngestUpload_RoutesPlainText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body := strings.Repeat("Employees accrue twenty days of annual leave per year. ", 30)
	res, err := f.proc.IngestUpload(ctx, []byte(body), "handbook.txt")
	require.NoError(t, err)
	assert.Equal(t, model.TypeDoc, res.Type)
	assert.GreaterOrEqual(t, res.Count, 1)

	hits, err := f.store.Query(ctx, "annual leave", 8)
	require.NoError(t, err)
	require.Len(t, hits, res.Count)
	assert.Equal(t, "handbook.txt", hits[0].Metadata.String(model.MetaSource))
}

func TestIngestUpload_EmptyTextIsNotRegistered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.proc.IngestUpload(ctx, []byte("  \n "), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, model.TypeDoc, res.Type)
	assert.Zero(t, res.Count)
	assert.Empty(t, res.DocID)

	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.events.names())
}

func TestIngestUpload_RejectsUnsupportedExtension(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.IngestUpload(context.Background(), []byte("x"), "notes.md")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestIngestQAText_NoPairs(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.proc.IngestQAText(context.Background(), []byte("just prose"), "faq.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "no pairs found")
}

func TestIngestFile_AlwaysChunks(t *testing.T) {
	f := newFixture(t)
	docID, n, err := f.proc.IngestFile(context.Background(), []byte(sampleQA), "faq.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, docID)
	assert.Equal(t, 1, n)
}

func TestDeleteDocument_RemovesVectorsAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep, err := f.proc.IngestUpload(ctx, []byte("Remote work requires written approval."), "remote.txt")
	require.NoError(t, err)
	gone, err := f.proc.IngestUpload(ctx, []byte(sampleQA), "faq.txt")
	require.NoError(t, err)

	require.NoError(t, f.proc.DeleteDocument(ctx, gone.DocID))

	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.DocID, list[0].DocID)

	hits, err := f.store.Query(ctx, "What is Foo?", 8)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, gone.DocID, h.Metadata.String(model.MetaDocID))
	}

	err = f.proc.DeleteDocument(ctx, gone.DocID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClear_WipesStoreAndRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.proc.IngestUpload(ctx, []byte(sampleQA), "faq.txt")
	require.NoError(t, err)
	require.NoError(t, f.proc.Clear(ctx))

	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	hits, err := f.store.Query(ctx, "What is Foo?", 8)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, []string{model.EventDocumentIngested, model.EventStoreCleared}, f.events.names())
}

func TestClear_SerialisedWithIngestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.proc.IngestUpload(ctx, []byte(sampleQA), "faq.txt")
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.proc.Clear(ctx)
	}()
	wg.Wait()

	// 每条登记记录都必须有对应的向量
	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	hits, err := f.store.Query(ctx, "What is Foo?", 1000)
	require.NoError(t, err)
	assert.Len(t, hits, 3*len(list))
}

type failingStore struct {
	vectorstore.Store
}

func (failingStore) AddTexts(context.Context, []string, []model.Metadata) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestIngestUpload_StoreFailureRegistersNothing(t *testing.T) {
	f := newFixture(t)
	chunker, _ := NewChunker(500, 50)
	proc := NewProcessor(NewExtractor(nil), chunker, NewQAParser(), failingStore{f.store}, f.repo, nil, nil)

	_, err := proc.IngestUpload(context.Background(), []byte(sampleQA), "faq.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	list, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
