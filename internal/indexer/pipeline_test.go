package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"askdocs-ai/internal/storage"
	storage_mocks "askdocs-ai/internal/storage/mocks"
	"askdocs-ai/internal/vectorindex"
	vectorindex_mocks "askdocs-ai/internal/vectorindex/mocks"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5, 0.25}
	}
	return out, nil
}

type pipelineMocks struct {
	documents *storage_mocks.MockDocumentStore
	chunks    *storage_mocks.MockChunkStore
	embedder  *stubEmbedder
	index     *vectorindex_mocks.MockVectorIndex
}

func newTestPipeline(ctrl *gomock.Controller) (*Pipeline, *pipelineMocks) {
	m := &pipelineMocks{
		documents: storage_mocks.NewMockDocumentStore(ctrl),
		chunks:    storage_mocks.NewMockChunkStore(ctrl),
		embedder:  &stubEmbedder{},
		index:     vectorindex_mocks.NewMockVectorIndex(ctrl),
	}
	chunker := NewWindowChunker(CharCounter{}, DefaultChunkerOptions(), nil)
	return NewPipeline(m.documents, m.chunks, m.embedder, m.index, chunker), m
}

func TestPipeline_IndexDocument_New(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	content := []byte("# Widget Guide\n\nWidgets are configured in the settings file. Each widget has a unique name.")

	m.documents.EXPECT().
		GetByName(gomock.Any(), "guide.md").
		Return(nil, storage.ErrNotFound)

	var gotRecords []storage.ChunkRecord
	m.chunks.EXPECT().
		InsertBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, records []storage.ChunkRecord) error {
			gotRecords = records
			return nil
		})

	var gotPoints []vectorindex.Point
	m.index.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, points []vectorindex.Point) error {
			gotPoints = points
			return nil
		})

	var gotDoc *storage.DocumentRecord
	m.documents.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
			gotDoc = doc
			return nil
		})

	record, err := pipeline.IndexDocument(context.Background(), "guide.md", content)
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}

	if record.Name != "guide.md" {
		t.Errorf("record.Name = %q, want guide.md", record.Name)
	}
	wantHash := fmt.Sprintf("%x", sha256.Sum256(content))
	if record.ContentHash != wantHash {
		t.Errorf("record.ContentHash = %q, want sha256 of the raw content", record.ContentHash)
	}
	if record.SizeBytes != len(content) {
		t.Errorf("record.SizeBytes = %d, want %d", record.SizeBytes, len(content))
	}
	if record.ID == "" {
		t.Error("record.ID should be generated for a new document")
	}
	if record.ChunkCount != len(gotRecords) {
		t.Errorf("record.ChunkCount = %d, want %d", record.ChunkCount, len(gotRecords))
	}
	if gotDoc == nil || gotDoc.ID != record.ID {
		t.Errorf("upserted document = %+v, want the returned record", gotDoc)
	}

	if len(gotRecords) == 0 {
		t.Fatal("no chunk records inserted")
	}
	first := gotRecords[0]
	if first.ID != ChunkID(record.ID, 0) || first.Ordinal != 0 || first.DocumentID != record.ID {
		t.Errorf("gotRecords[0] = %+v, want deterministic ID under the document", first)
	}
	if !strings.Contains(first.Text, "Widgets are configured") {
		t.Errorf("chunk text = %q, want the document body", first.Text)
	}
	if first.TokenCount <= 0 {
		t.Errorf("chunk TokenCount = %d, want > 0", first.TokenCount)
	}

	if len(gotPoints) != len(gotRecords) {
		t.Fatalf("points count = %d, want one per chunk", len(gotPoints))
	}
	if gotPoints[0].ID != PointID(first.ID) {
		t.Errorf("point ID = %q, want derived from chunk ID", gotPoints[0].ID)
	}
	if gotPoints[0].Meta["chunk_id"] != first.ID || gotPoints[0].Meta["document_id"] != record.ID {
		t.Errorf("point meta = %+v, want chunk and document identifiers", gotPoints[0].Meta)
	}
	if m.embedder.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", m.embedder.calls)
	}
}

func TestPipeline_IndexDocument_SkipsUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	content := []byte("Stable content that has not changed.")
	existing := &storage.DocumentRecord{
		ID:          "doc-1",
		Name:        "stable.md",
		ContentHash: fmt.Sprintf("%x", sha256.Sum256(content)),
		ChunkCount:  1,
	}

	m.documents.EXPECT().
		GetByName(gomock.Any(), "stable.md").
		Return(existing, nil)

	record, err := pipeline.IndexDocument(context.Background(), "stable.md", content)
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if record != existing {
		t.Errorf("IndexDocument() = %+v, want the existing record unchanged", record)
	}
	if m.embedder.calls != 0 {
		t.Errorf("embedder calls = %d, want 0 for unchanged content", m.embedder.calls)
	}
}

func TestPipeline_IndexDocument_ReplacesChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	content := []byte("New revision of the guide. The settings file moved to TOML.")
	existing := &storage.DocumentRecord{
		ID:          "doc-1",
		Name:        "guide.md",
		ContentHash: "outdated-hash",
		ChunkCount:  4,
	}

	m.documents.EXPECT().
		GetByName(gomock.Any(), "guide.md").
		Return(existing, nil)

	// Old state is removed before the new chunks land.
	m.index.EXPECT().DeleteByDocument(gomock.Any(), "doc-1").Return(nil)
	m.chunks.EXPECT().DeleteByDocument(gomock.Any(), "doc-1").Return(nil)

	var gotRecords []storage.ChunkRecord
	m.chunks.EXPECT().
		InsertBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, records []storage.ChunkRecord) error {
			gotRecords = records
			return nil
		})
	m.index.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	m.documents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	record, err := pipeline.IndexDocument(context.Background(), "guide.md", content)
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}

	if record.ID != "doc-1" {
		t.Errorf("record.ID = %q, want the existing ID preserved", record.ID)
	}
	if len(gotRecords) == 0 || gotRecords[0].ID != ChunkID("doc-1", 0) {
		t.Errorf("gotRecords = %+v, want chunks rebuilt under the preserved ID", gotRecords)
	}
}

func TestPipeline_IndexDocument_EmbedErrorLeavesOldState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	m.documents.EXPECT().
		GetByName(gomock.Any(), "guide.md").
		Return(&storage.DocumentRecord{ID: "doc-1", Name: "guide.md", ContentHash: "outdated"}, nil)
	m.embedder.err = errors.New("embedding server down")

	// No delete or insert expectations: an embed failure must not touch
	// previously indexed state.
	_, err := pipeline.IndexDocument(context.Background(), "guide.md", []byte("Changed content worth chunking."))
	if err == nil {
		t.Fatal("IndexDocument() with embed failure should return error")
	}
}

func TestPipeline_IndexDocument_EmptyAfterCleaning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	// Only boilerplate; the source cleaner removes everything.
	content := []byte("© 2025 Example Corp. All rights reserved.\n")

	m.documents.EXPECT().
		GetByName(gomock.Any(), "empty.md").
		Return(nil, storage.ErrNotFound)
	m.documents.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		Return(nil)

	record, err := pipeline.IndexDocument(context.Background(), "empty.md", content)
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if record.ChunkCount != 0 {
		t.Errorf("record.ChunkCount = %d, want 0", record.ChunkCount)
	}
	if m.embedder.calls != 0 {
		t.Errorf("embedder calls = %d, want 0 with no chunks", m.embedder.calls)
	}
}

func TestPipeline_IndexDocument_EmptyName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, _ := newTestPipeline(ctrl)

	if _, err := pipeline.IndexDocument(context.Background(), "   ", []byte("content")); err == nil {
		t.Fatal("IndexDocument() with blank name should return error")
	}
}

func TestPipeline_RemoveDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	m.documents.EXPECT().GetByID(gomock.Any(), "doc-1").
		Return(&storage.DocumentRecord{ID: "doc-1", Name: "guide.md"}, nil)
	m.index.EXPECT().DeleteByDocument(gomock.Any(), "doc-1").Return(nil)
	m.documents.EXPECT().Delete(gomock.Any(), "doc-1").Return(nil)

	if err := pipeline.RemoveDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
}

func TestPipeline_RemoveDocument_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(ctrl)

	// Unknown document: the index is never touched.
	m.documents.EXPECT().GetByID(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)

	err := pipeline.RemoveDocument(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RemoveDocument() error = %v, want ErrNotFound preserved", err)
	}
}

// blockingEmbedder parks inside EmbedTexts until released, so tests can hold
// one indexing run inside the pipeline's critical section.
type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	b.started <- struct{}{}
	<-b.release
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func TestPipeline_IndexDocument_SerializesSameDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	documents := storage_mocks.NewMockDocumentStore(ctrl)
	chunks := storage_mocks.NewMockChunkStore(ctrl)
	index := vectorindex_mocks.NewMockVectorIndex(ctrl)
	embedder := &blockingEmbedder{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	chunker := NewWindowChunker(CharCounter{}, DefaultChunkerOptions(), nil)
	pipeline := NewPipeline(documents, chunks, embedder, index, chunker)

	documents.EXPECT().GetByName(gomock.Any(), "doc.md").Return(nil, storage.ErrNotFound).Times(2)
	chunks.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	index.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	documents.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	done := make(chan error, 2)
	run := func(content string) {
		_, err := pipeline.IndexDocument(context.Background(), "doc.md", []byte(content))
		done <- err
	}

	go run("The first revision of the document body.")
	<-embedder.started // first run is inside the critical section

	go run("The second revision of the document body.")
	select {
	case <-embedder.started:
		t.Fatal("second run entered the pipeline while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(embedder.release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("IndexDocument() error = %v", err)
		}
	}
}

func TestPointID(t *testing.T) {
	a := PointID("doc-1:0000")
	b := PointID("doc-1:0000")
	c := PointID("doc-1:0001")

	if a != b {
		t.Errorf("PointID() not deterministic: %q vs %q", a, b)
	}
	if a == c {
		t.Error("PointID() collides for different chunk IDs")
	}
	if len(a) != 36 {
		t.Errorf("PointID() = %q, want canonical UUID form", a)
	}
}
