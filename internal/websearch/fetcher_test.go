package websearch

import (
	"context"
	"errors"
	"math"
	"testing"

	"askdocs-ai/internal/answer"
)

type stubSearcher struct {
	hits     []SearchHit
	err      error
	calls    int
	gotQuery string
	gotMax   int
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	s.calls++
	s.gotQuery = query
	s.gotMax = maxResults
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func TestFetcher_Fetch(t *testing.T) {
	stub := &stubSearcher{hits: []SearchHit{
		{Title: " Filtering ", URL: "https://example.com/a", Content: " How filters work. ", Score: 4, Engine: "brave"},
		{Title: "Payloads", URL: "https://example.com/b", Content: "Payload indexes.", Score: 1},
	}}
	f := &fetcher{search: stub}

	sources := f.Fetch(context.Background(), "how do filters work?", 5)

	if len(sources) != 2 {
		t.Fatalf("Fetch() returned %d sources, want 2", len(sources))
	}

	first := sources[0]
	if first.Type != answer.SourceWeb {
		t.Errorf("Fetch()[0].Type = %q, want %q", first.Type, answer.SourceWeb)
	}
	if first.Content != "How filters work." {
		t.Errorf("Fetch()[0].Content = %q, want trimmed snippet", first.Content)
	}
	if first.Title != "Filtering" || first.URL != "https://example.com/a" {
		t.Errorf("Fetch()[0] title/url = %q/%q, want provider values", first.Title, first.URL)
	}
	if first.Confidence != 0.8 {
		t.Errorf("Fetch()[0].Confidence = %v, want 0.8 for score 4", first.Confidence)
	}
	if engine, ok := first.Metadata["engine"]; !ok || engine != "brave" {
		t.Errorf("Fetch()[0].Metadata = %v, want engine recorded", first.Metadata)
	}

	if sources[1].Confidence != 0.5 {
		t.Errorf("Fetch()[1].Confidence = %v, want 0.5 for score 1", sources[1].Confidence)
	}
	if sources[1].Metadata != nil {
		t.Errorf("Fetch()[1].Metadata = %v, want nil when the provider names no engine", sources[1].Metadata)
	}
}

func TestFetcher_Fetch_RewritesQueryBeforeDispatch(t *testing.T) {
	stub := &stubSearcher{}
	f := &fetcher{search: stub}

	f.Fetch(context.Background(), "What is the capital of France?", 5)

	if stub.gotQuery != "capital of France" {
		t.Errorf("dispatched query = %q, want rewritten terms", stub.gotQuery)
	}
}

func TestFetcher_Fetch_SearchErrorDegradesToEmpty(t *testing.T) {
	stub := &stubSearcher{err: errors.New("provider down")}
	f := &fetcher{search: stub}

	sources := f.Fetch(context.Background(), "anything at all", 5)

	if len(sources) != 0 {
		t.Errorf("Fetch() = %v, want empty on provider error", sources)
	}
	if stub.calls != 1 {
		t.Errorf("searcher saw %d calls, want 1", stub.calls)
	}
}

func TestFetcher_Fetch_EmptyQuery(t *testing.T) {
	stub := &stubSearcher{}
	f := &fetcher{search: stub}

	if got := f.Fetch(context.Background(), "   ", 5); got != nil {
		t.Errorf("Fetch() = %v, want nil for blank query", got)
	}
	if stub.calls != 0 {
		t.Errorf("searcher saw %d calls, want 0", stub.calls)
	}
}

func TestFetcher_Fetch_SkipsSnippetlessHits(t *testing.T) {
	stub := &stubSearcher{hits: []SearchHit{
		{Title: "no snippet", URL: "https://example.com/a", Score: 9},
		{Title: "with snippet", URL: "https://example.com/b", Content: "Useful text.", Score: 1},
	}}
	f := &fetcher{search: stub}

	sources := f.Fetch(context.Background(), "useful text", 5)

	if len(sources) != 1 {
		t.Fatalf("Fetch() returned %d sources, want 1", len(sources))
	}
	if sources[0].Title != "with snippet" {
		t.Errorf("Fetch() kept %q, want the hit that carries content", sources[0].Title)
	}
}

func TestFetcher_Fetch_DefaultsMaxResults(t *testing.T) {
	stub := &stubSearcher{}
	f := &fetcher{search: stub}

	f.Fetch(context.Background(), "some terms", 0)

	if stub.gotMax != defaultMaxResults {
		t.Errorf("dispatched maxResults = %d, want %d", stub.gotMax, defaultMaxResults)
	}
}

func TestNormalizeHitScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		rank  int
		want  float64
	}{
		{name: "positive score squashed", score: 4, rank: 0, want: 0.8},
		{name: "small score stays low", score: 0.25, rank: 0, want: 0.2},
		{name: "unscored first hit", score: 0, rank: 0, want: 0.6},
		{name: "unscored later hit decays", score: 0, rank: 2, want: 0.4},
		{name: "unscored decay floors", score: 0, rank: 9, want: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeHitScore(tt.score, tt.rank); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("normalizeHitScore(%v, %d) = %v, want %v", tt.score, tt.rank, got, tt.want)
			}
		})
	}
}
