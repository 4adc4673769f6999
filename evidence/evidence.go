// Package evidence models retrieved supporting passages and the narrow
// search contract the review workflow consumes them through.
package evidence

import (
	"context"
	"sort"
)

// Kind selects which evidence corpus a search targets.
type Kind string

const (
	// KindCase searches past deliberation precedents.
	KindCase Kind = "case"
	// KindPolicy searches law, regulation, and guideline material.
	KindPolicy Kind = "policy"
)

// DocType classifies a policy passage; used to reclassify merged policy
// results into their buckets.
type DocType string

const (
	DocTypeLaw        DocType = "law"
	DocTypeRegulation DocType = "regulation"
	DocTypeGuideline  DocType = "guideline"
	DocTypeCase       DocType = "case"
)

// Provenance carries the structured origin metadata of a retrieved passage.
type Provenance struct {
	SourceFile   string  `json:"source_file,omitempty"`
	DocType      DocType `json:"doc_type,omitempty"`
	CaseNumber   string  `json:"case_number,omitempty"`
	CaseDate     string  `json:"case_date,omitempty"`
	ArticleRef   string  `json:"article_ref,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
}

// Item is a retrieved passage plus its provenance and similarity score.
// Identity is the stable dedup key (the source store's object id). Items are
// never mutated after creation except for score replacement during reranking.
type Item struct {
	Content    string     `json:"content"`
	Provenance Provenance `json:"provenance"`
	Score      float32    `json:"similarity_score"`
	Identity   string     `json:"identity"`
}

// Searcher is the evidence store contract. Implementations must return items
// sorted by descending score and must never fail for "no results".
type Searcher interface {
	Search(ctx context.Context, query string, kind Kind) ([]Item, error)
}

// DedupByIdentity removes items with duplicate identities, keeping the first
// occurrence (input order, i.e. the highest-ranked copy).
func DedupByIdentity(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Identity == "" {
			out = append(out, item)
			continue
		}
		if _, ok := seen[item.Identity]; ok {
			continue
		}
		seen[item.Identity] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SortByScore orders items by descending similarity score, stable so that
// equal scores keep their retrieval order.
func SortByScore(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}
