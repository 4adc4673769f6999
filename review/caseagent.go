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

// caseAgent runs the precedent retrieval loop: retrieve, grade, rewrite,
// bounded by its own retry counter. It writes only CaseEvidence and the
// trace log, nothing the policy agent touches.
type caseAgent struct {
	llm      llm.Client
	searcher evidence.Searcher
	cfg      *Config
	logger   *slog.Logger
}

func newCaseAgent(client llm.Client, searcher evidence.Searcher, cfg *Config, logger *slog.Logger) *caseAgent {
	return &caseAgent{llm: client, searcher: searcher, cfg: cfg, logger: logger}
}

func (a *caseAgent) Run(ctx context.Context, st *workflowState) {
	if st.Plan == nil || !st.Plan.UseCaseAgent {
		return
	}

	riskLabel := st.Plan.RiskLabel()
	query := st.Plan.CaseQuery
	retry := 0

	for {
		start := time.Now()
		items := retrieve(ctx, a.searcher, a.cfg, a.logger, query, evidence.KindCase)
		st.appendTrace(timedStep(start, TraceRecord{
			Step:  "case_retrieve",
			Query: query,
			Total: len(items),
			Retry: retry,
		}))

		if len(items) == 0 {
			if retry >= a.cfg.AgentMaxRetries {
				a.logger.Warn("case agent found no precedent", "retries", retry)
				return
			}
			query = a.rewrite(ctx, st, query, riskLabel)
			retry++
			continue
		}

		relevant := a.grade(ctx, st, items, riskLabel)
		if len(relevant) > 0 || retry >= a.cfg.AgentMaxRetries {
			st.CaseEvidence = evidence.DedupByIdentity(relevant)
			a.logger.Info("case agent finished",
				"retrieved", len(items), "relevant", len(st.CaseEvidence), "retry", retry)
			return
		}

		query = a.rewrite(ctx, st, query, riskLabel)
		retry++
	}
}

func (a *caseAgent) grade(ctx context.Context, st *workflowState, items []evidence.Item, riskLabel string) []evidence.Item {
	start := time.Now()
	relevant := batchGrade(ctx, a.llm, a.cfg, a.logger,
		gradeCaseSystem, gradeCaseUser, st.Input.Phrase, riskLabel, items, formatCaseDoc)
	st.appendTrace(timedStep(start, TraceRecord{
		Step:     "case_grade",
		Total:    len(items),
		Relevant: len(relevant),
	}))
	return relevant
}

func (a *caseAgent) rewrite(ctx context.Context, st *workflowState, oldQuery, riskLabel string) string {
	start := time.Now()
	newQuery := rewriteQuery(ctx, a.llm, a.cfg, a.logger,
		rewriteCaseSystem, rewriteCaseUser, st.Input.Phrase, riskLabel, oldQuery)
	st.appendTrace(timedStep(start, TraceRecord{
		Step:     "case_rewrite",
		OldQuery: oldQuery,
		NewQuery: newQuery,
	}))
	return newQuery
}

// formatCaseDoc renders one precedent for the batched grading prompt.
func formatCaseDoc(index int, item evidence.Item) string {
	var header []string
	if item.Provenance.CaseNumber != "" {
		header = append(header, "처리번호: "+item.Provenance.CaseNumber)
	}
	if item.Provenance.CaseDate != "" {
		header = append(header, "처리일자: "+item.Provenance.CaseDate)
	}
	headerText := "정보없음"
	if len(header) > 0 {
		headerText = strings.Join(header, " | ")
	}
	return fmt.Sprintf("[사례 %d] %s\n내용: %s", index, headerText, snippet(item.Content, 400))
}
