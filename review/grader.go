package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/llm"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/message"
)

// answerGrader checks the synthesized answer for groundedness against a
// budget-truncated summary of the evidence. A grader outage never blocks
// release: the default verdict is pass.
type answerGrader struct {
	llm    llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newAnswerGrader(client llm.Client, cfg *Config, logger *slog.Logger) *answerGrader {
	return &answerGrader{llm: client, cfg: cfg, logger: logger}
}

// Grade writes the verdict for the current answer into the state.
func (g *answerGrader) Grade(ctx context.Context, st *workflowState) {
	start := time.Now()

	grade := g.grade(ctx, st)
	st.AnswerGrade = grade

	rec := TraceRecord{Step: "answer_grade", Retry: st.RetryCount}
	if grade.Pass {
		rec.Relevant = 1
	}
	st.appendTrace(timedStep(start, rec))
}

func (g *answerGrader) grade(ctx context.Context, st *workflowState) *Grade {
	answerJSON, err := json.Marshal(st.Answer)
	if err != nil {
		return &Grade{Pass: true, Feedback: fmt.Sprintf("answer serialization failed: %v", err)}
	}

	summary := g.cfg.truncateBudget(evidenceSummary(st))

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.StepTimeout)
	defer cancel()

	resp, err := g.llm.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, answerGradeSystem),
		message.NewMessage(message.RoleUser, fmt.Sprintf(answerGradeUser, st.Input.Phrase, summary, string(answerJSON))),
	})
	if err != nil {
		g.logger.Warn("answer grading failed, defaulting to pass", "error", err)
		return &Grade{Pass: true, Feedback: fmt.Sprintf("grader unavailable: %v", err)}
	}

	out, err := decodeJSON[Grade](resp.Text())
	if err != nil {
		g.logger.Warn("answer grading output unparseable, defaulting to pass", "error", err)
		return &Grade{Pass: true, Feedback: fmt.Sprintf("grader output invalid: %v", err)}
	}
	return out
}

// evidenceSummary concatenates every accepted evidence snippet for the
// grading prompt. The caller truncates to the configured budget.
func evidenceSummary(st *workflowState) string {
	items := st.allEvidence()
	if len(items) == 0 {
		return "(검색된 근거 없음)"
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("[%s] %s", item.Provenance.DocType, snippet(item.Content, 300)))
	}
	return strings.Join(lines, "\n")
}
