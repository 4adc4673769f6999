package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/reranker"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/vector"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/vector/inmemory"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimension() int { return 3 }

type stubReranker struct {
	results []reranker.Result
	err     error
	calls   int
}

func (s *stubReranker) Rank(ctx context.Context, query string, docs []string) ([]reranker.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func seedStore(t *testing.T) vector.Store {
	t.Helper()
	store := inmemory.New()
	records := []*vector.Record{
		{ID: "case-1", Collection: "cases", Content: "홈쇼핑 최저가 단정 표현 위반 사례", Vector: []float32{1, 0, 0},
			Metadata: map[string]string{"doc_type": "심의사례", "case_number": "2023-12"}},
		{ID: "case-2", Collection: "cases", Content: "무이자 할부 고지 누락 사례", Vector: []float32{0.9, 0.1, 0},
			Metadata: map[string]string{"doc_type": "심의사례"}},
		{ID: "reg-1", Collection: "regulations", Content: "상품소개 및 판매방송 심의에 관한 규정 제1조", Vector: []float32{1, 0, 0},
			Metadata: map[string]string{"doc_type": "심의규정", "article_ref": "제1조"}},
		{ID: "law-1", Collection: "regulations", Content: "방송법 제33조", Vector: []float32{0.8, 0.2, 0},
			Metadata: map[string]string{"doc_type": "법령", "article_ref": "제33조"}},
		{ID: "guide-1", Collection: "guidelines", Content: "가격 표현 가이드라인", Vector: []float32{0.7, 0.3, 0},
			Metadata: map[string]string{"doc_type": "가이드라인"}},
	}
	if err := store.Add(context.Background(), records...); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestSearchCaseKind(t *testing.T) {
	engine := New(seedStore(t), stubEmbedder{})

	items, err := engine.Search(context.Background(), "최저가", evidence.KindCase)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 case items, got %d", len(items))
	}
	if items[0].Identity != "case-1" {
		t.Errorf("expected best match first, got %s", items[0].Identity)
	}
	if items[0].Provenance.DocType != evidence.DocTypeCase {
		t.Errorf("doc type not normalized: %s", items[0].Provenance.DocType)
	}
}

func TestSearchPolicyKindMergesCollections(t *testing.T) {
	engine := New(seedStore(t), stubEmbedder{})

	items, err := engine.Search(context.Background(), "가격", evidence.KindPolicy)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected regulations+guidelines merged, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Score > items[i-1].Score {
			t.Fatalf("merged items not in descending score order: %+v", items)
		}
	}
	types := map[evidence.DocType]bool{}
	for _, item := range items {
		types[item.Provenance.DocType] = true
	}
	if !types[evidence.DocTypeLaw] || !types[evidence.DocTypeRegulation] || !types[evidence.DocTypeGuideline] {
		t.Errorf("expected law, regulation, and guideline items: %+v", items)
	}
}

func TestSearchRerankerReorders(t *testing.T) {
	rr := &stubReranker{results: []reranker.Result{
		{Index: 1, Score: 0.95},
		{Index: 0, Score: 0.6},
	}}
	engine := New(seedStore(t), stubEmbedder{}, WithReranker(rr))

	items, err := engine.Search(context.Background(), "할부", evidence.KindCase)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if rr.calls != 1 {
		t.Fatalf("expected one rerank call, got %d", rr.calls)
	}
	if items[0].Identity != "case-2" {
		t.Errorf("expected reranked order, got %s first", items[0].Identity)
	}
	if items[0].Score != 0.95 {
		t.Errorf("expected rerank score replacement, got %f", items[0].Score)
	}
}

func TestSearchRerankerMinScoreFilters(t *testing.T) {
	rr := &stubReranker{results: []reranker.Result{
		{Index: 0, Score: 0.9},
		{Index: 1, Score: 0.1},
	}}
	engine := New(seedStore(t), stubEmbedder{}, WithReranker(rr))

	items, err := engine.Search(context.Background(), "최저가", evidence.KindCase)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected low-relevance candidate dropped, got %d items", len(items))
	}
}

func TestSearchRerankerFailureKeepsSimilarityOrder(t *testing.T) {
	rr := &stubReranker{err: errors.New("rerank unavailable")}
	engine := New(seedStore(t), stubEmbedder{}, WithReranker(rr))

	items, err := engine.Search(context.Background(), "최저가", evidence.KindCase)
	if err != nil {
		t.Fatalf("reranker failure must not fail the search: %v", err)
	}
	if len(items) != 2 || items[0].Identity != "case-1" {
		t.Errorf("expected similarity order fallback, got %+v", items)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	engine := New(inmemory.New(), stubEmbedder{})

	items, err := engine.Search(context.Background(), "아무거나", evidence.KindCase)
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}
