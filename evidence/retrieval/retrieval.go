// Package retrieval implements evidence.Searcher on top of a vector store,
// an embedder, and an optional reranker.
package retrieval

import (
	"context"
	"fmt"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/embedder"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/pkg/logging"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/preprocess"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/reranker"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/vector"
)

// stage describes one collection fan-out: how many candidates to fetch from
// the store and how many to keep after reranking.
type stage struct {
	collection string
	fetchK     int
	keepK      int
}

var (
	caseStages = []stage{
		{collection: "cases", fetchK: 20, keepK: 5},
	}
	policyStages = []stage{
		{collection: "regulations", fetchK: 20, keepK: 10},
		{collection: "guidelines", fetchK: 15, keepK: 5},
	}
)

// DefaultMinScore is the rerank relevance floor below which candidates are
// discarded.
const DefaultMinScore = 0.3

// Engine retrieves, reranks, and normalizes evidence passages. A nil reranker
// degrades to plain vector-similarity order.
type Engine struct {
	store    vector.Store
	embedder embedder.Embedder
	reranker reranker.Reranker
	minScore float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithReranker attaches a second-stage reranker.
func WithReranker(r reranker.Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithMinScore overrides the rerank relevance floor.
func WithMinScore(min float32) Option {
	return func(e *Engine) { e.minScore = min }
}

// New builds an Engine over the given store and embedder.
func New(store vector.Store, emb embedder.Embedder, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		embedder: emb,
		minScore: DefaultMinScore,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds the query, fans out over the kind's collections, reranks each
// collection independently, and merges the survivors by descending score.
func (e *Engine) Search(ctx context.Context, query string, kind evidence.Kind) ([]evidence.Item, error) {
	stages := caseStages
	if kind == evidence.KindPolicy {
		stages = policyStages
	}

	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var merged []evidence.Item
	for _, st := range stages {
		items, err := e.searchStage(ctx, query, queryVector, st)
		if err != nil {
			return nil, err
		}
		merged = append(merged, items...)
	}

	evidence.SortByScore(merged)
	return evidence.DedupByIdentity(merged), nil
}

func (e *Engine) searchStage(ctx context.Context, query string, queryVector []float32, st stage) ([]evidence.Item, error) {
	hits, err := e.store.Search(ctx, st.collection, queryVector, st.fetchK)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", st.collection, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	items := make([]evidence.Item, 0, len(hits))
	for _, hit := range hits {
		items = append(items, toItem(hit))
	}
	return e.rerank(ctx, query, items, st.keepK), nil
}

// rerank reorders items by rerank relevance, drops candidates below the
// relevance floor, and keeps at most keepK. On reranker failure the original
// similarity order is kept.
func (e *Engine) rerank(ctx context.Context, query string, items []evidence.Item, keepK int) []evidence.Item {
	if e.reranker == nil {
		return truncate(items, keepK)
	}

	docs := make([]string, len(items))
	for i, item := range items {
		docs[i] = item.Content
	}

	results, err := e.reranker.Rank(ctx, query, docs)
	if err != nil {
		logging.Logger().Warn("rerank failed, keeping similarity order",
			"error", err, "candidates", len(items))
		return truncate(items, keepK)
	}

	ranked := make([]evidence.Item, 0, keepK)
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(items) {
			continue
		}
		if res.Score < e.minScore {
			continue
		}
		item := items[res.Index]
		item.Score = res.Score
		ranked = append(ranked, item)
		if len(ranked) == keepK {
			break
		}
	}
	return ranked
}

func truncate(items []evidence.Item, keepK int) []evidence.Item {
	if len(items) > keepK {
		return items[:keepK]
	}
	return items
}

// toItem maps a vector hit into an evidence item, flattening any HTML left in
// the stored passage.
func toItem(hit vector.Hit) evidence.Item {
	meta := hit.Record.Metadata
	return evidence.Item{
		Content:  preprocess.PassageText(hit.Record.Content),
		Score:    hit.Score,
		Identity: hit.Record.ID,
		Provenance: evidence.Provenance{
			SourceFile:   meta["source_file"],
			DocType:      normalizeDocType(meta["doc_type"]),
			CaseNumber:   meta["case_number"],
			CaseDate:     meta["case_date"],
			ArticleRef:   meta["article_ref"],
			SectionTitle: meta["section_title"],
		},
	}
}

// normalizeDocType maps stored doc_type labels, including the Korean corpus
// labels, onto the canonical enum.
func normalizeDocType(raw string) evidence.DocType {
	switch raw {
	case "법령", "law":
		return evidence.DocTypeLaw
	case "심의규정", "regulation":
		return evidence.DocTypeRegulation
	case "가이드라인", "guideline":
		return evidence.DocTypeGuideline
	case "심의사례", "case":
		return evidence.DocTypeCase
	default:
		return evidence.DocType(raw)
	}
}
