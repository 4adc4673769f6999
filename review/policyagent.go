package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/llm"
)

// policyAgent runs the regulatory retrieval loop over the merged
// law/regulation/guideline result set, then reclassifies accepted items into
// the three buckets by document type. Its retry counter is independent of
// the case agent's.
type policyAgent struct {
	llm      llm.Client
	searcher evidence.Searcher
	cfg      *Config
	logger   *slog.Logger
}

func newPolicyAgent(client llm.Client, searcher evidence.Searcher, cfg *Config, logger *slog.Logger) *policyAgent {
	return &policyAgent{llm: client, searcher: searcher, cfg: cfg, logger: logger}
}

func (a *policyAgent) Run(ctx context.Context, st *workflowState) {
	if st.Plan == nil || !st.Plan.UsePolicyAgent {
		return
	}

	riskLabel := st.Plan.RiskLabel()
	query := st.Plan.PolicyQuery
	retry := 0

	for {
		start := time.Now()
		items := retrieve(ctx, a.searcher, a.cfg, a.logger, query, evidence.KindPolicy)
		st.appendTrace(timedStep(start, TraceRecord{
			Step:  "policy_retrieve",
			Query: query,
			Total: len(items),
			Retry: retry,
		}))

		if len(items) == 0 {
			if retry >= a.cfg.AgentMaxRetries {
				a.logger.Warn("policy agent found no regulatory material", "retries", retry)
				return
			}
			query = a.rewrite(ctx, st, query, riskLabel)
			retry++
			continue
		}

		relevant := a.grade(ctx, st, items, riskLabel)
		if len(relevant) > 0 || retry >= a.cfg.AgentMaxRetries {
			st.Policy = bucketByDocType(evidence.DedupByIdentity(relevant))
			a.logger.Info("policy agent finished",
				"retrieved", len(items),
				"law", len(st.Policy.Law),
				"regulation", len(st.Policy.Regulation),
				"guideline", len(st.Policy.Guideline),
				"retry", retry)
			return
		}

		query = a.rewrite(ctx, st, query, riskLabel)
		retry++
	}
}

// grade caps the candidate pool before the batched grading call to bound
// prompt size; overflow beyond the cap passes through ungraded rather than
// being discarded.
func (a *policyAgent) grade(ctx context.Context, st *workflowState, items []evidence.Item, riskLabel string) []evidence.Item {
	start := time.Now()

	pool := items
	var overflow []evidence.Item
	if len(pool) > a.cfg.PolicyGradePool {
		overflow = pool[a.cfg.PolicyGradePool:]
		pool = pool[:a.cfg.PolicyGradePool]
	}

	relevant := batchGrade(ctx, a.llm, a.cfg, a.logger,
		gradePolicySystem, gradePolicyUser, st.Input.Phrase, riskLabel, pool, formatPolicyDoc)
	relevant = append(relevant, overflow...)

	st.appendTrace(timedStep(start, TraceRecord{
		Step:     "policy_grade",
		Total:    len(items),
		Relevant: len(relevant),
	}))
	return relevant
}

func (a *policyAgent) rewrite(ctx context.Context, st *workflowState, oldQuery, riskLabel string) string {
	start := time.Now()
	newQuery := rewriteQuery(ctx, a.llm, a.cfg, a.logger,
		rewritePolicySystem, rewritePolicyUser, st.Input.Phrase, riskLabel, oldQuery)
	st.appendTrace(timedStep(start, TraceRecord{
		Step:     "policy_rewrite",
		OldQuery: oldQuery,
		NewQuery: newQuery,
	}))
	return newQuery
}

// bucketByDocType splits accepted policy evidence into law, guideline, and
// regulation (the default bucket).
func bucketByDocType(items []evidence.Item) policyBuckets {
	var buckets policyBuckets
	for _, item := range items {
		switch item.Provenance.DocType {
		case evidence.DocTypeLaw:
			buckets.Law = append(buckets.Law, item)
		case evidence.DocTypeGuideline:
			buckets.Guideline = append(buckets.Guideline, item)
		default:
			buckets.Regulation = append(buckets.Regulation, item)
		}
	}
	return buckets
}

// formatPolicyDoc renders one regulatory passage for the batched grading prompt.
func formatPolicyDoc(index int, item evidence.Item) string {
	var header []string
	if item.Provenance.SourceFile != "" {
		header = append(header, "출처: "+item.Provenance.SourceFile)
	}
	if item.Provenance.ArticleRef != "" {
		header = append(header, "조항: "+item.Provenance.ArticleRef)
	}
	if item.Provenance.SectionTitle != "" {
		header = append(header, "섹션: "+item.Provenance.SectionTitle)
	}
	headerText := "정보없음"
	if len(header) > 0 {
		headerText = strings.Join(header, " | ")
	}
	return fmt.Sprintf("[조항 %d] %s\n내용: %s", index, headerText, snippet(item.Content, 400))
}
