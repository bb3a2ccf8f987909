package docsource

import (
	"context"
	"errors"
	"testing"

	"askdocs-ai/internal/storage"
)

type stubIndexer struct {
	indexed map[string][]byte
	failFor string
}

func newStubIndexer() *stubIndexer {
	return &stubIndexer{indexed: make(map[string][]byte)}
}

func (s *stubIndexer) IndexDocument(_ context.Context, name string, content []byte) (*storage.DocumentRecord, error) {
	if name == s.failFor {
		return nil, errors.New("embedding server down")
	}
	s.indexed[name] = content
	return &storage.DocumentRecord{ID: "doc-" + name, Name: name}, nil
}

func TestSyncer_SyncAll(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "guide.md", "# Guide\n\nBody text.")
	writeTestFile(t, root, "folder/nested.txt", "nested notes")

	indexer := newStubIndexer()
	syncer := NewSyncer(NewScanner(root), indexer)

	if err := syncer.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	if len(indexer.indexed) != 2 {
		t.Fatalf("indexed %d documents, want 2", len(indexer.indexed))
	}
	if string(indexer.indexed["guide.md"]) != "# Guide\n\nBody text." {
		t.Errorf("guide.md content = %q, want the file body", indexer.indexed["guide.md"])
	}
	if string(indexer.indexed["folder/nested.txt"]) != "nested notes" {
		t.Errorf("nested content = %q, want the file body", indexer.indexed["folder/nested.txt"])
	}
}

func TestSyncer_SyncAll_ContinuesOnError(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "bad.md", "fails to index")
	writeTestFile(t, root, "good.md", "indexes fine")

	indexer := newStubIndexer()
	indexer.failFor = "bad.md"
	syncer := NewSyncer(NewScanner(root), indexer)

	err := syncer.SyncAll(context.Background())
	if err == nil {
		t.Fatal("SyncAll() with a failing document should return error")
	}

	// The failing file must not stop the rest of the sync.
	if _, ok := indexer.indexed["good.md"]; !ok {
		t.Error("SyncAll() should index remaining files after a failure")
	}
}

func TestSyncer_SyncAll_EmptyRoot(t *testing.T) {
	indexer := newStubIndexer()
	syncer := NewSyncer(NewScanner(t.TempDir()), indexer)

	if err := syncer.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() on empty directory error = %v", err)
	}
	if len(indexer.indexed) != 0 {
		t.Errorf("indexed %d documents, want 0", len(indexer.indexed))
	}
}

func TestSyncer_SyncAll_MissingRoot(t *testing.T) {
	syncer := NewSyncer(NewScanner("/nonexistent/docs"), newStubIndexer())

	if err := syncer.SyncAll(context.Background()); err == nil {
		t.Fatal("SyncAll() with missing docs directory should return error")
	}
}
