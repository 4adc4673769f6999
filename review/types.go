// Package review implements the multi-agent compliance review workflow for
// broadcast-advertising phrases: a planner fans two evidence agents out over
// precedent and regulatory corpora, a synthesizer merges their findings into
// a judgment, and an answer grader gates release with a bounded retry loop.
package review

import (
	"strings"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
)

// Judgment is the review verdict for a phrase.
type Judgment string

const (
	JudgmentViolation Judgment = "violation"
	JudgmentCaution   Judgment = "caution"
	JudgmentOK        Judgment = "ok"
)

// ParseJudgment maps a model-emitted judgment token, Korean or English, onto
// the canonical enum. The second return reports whether the token was
// recognised.
func ParseJudgment(raw string) (Judgment, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "위반소지", "위반", "violation":
		return JudgmentViolation, true
	case "주의", "caution":
		return JudgmentCaution, true
	case "ok", "문제없음":
		return JudgmentOK, true
	default:
		return "", false
	}
}

// Korean returns the label used in prompts and operator-facing output.
func (j Judgment) Korean() string {
	switch j {
	case JudgmentViolation:
		return "위반소지"
	case JudgmentCaution:
		return "주의"
	case JudgmentOK:
		return "OK"
	default:
		return string(j)
	}
}

// Request is the phrase under review plus its catalog context.
type Request struct {
	Phrase        string `json:"phrase"`
	Category      string `json:"category"`
	BroadcastType string `json:"broadcast_type"`
}

// Plan is the orchestrator's output: risk classification and one seed query
// per agent. Written once, read-only afterwards.
type Plan struct {
	RiskTypes     []string `json:"risk_types"`
	RiskKeywords  []string `json:"risk_keywords"`
	RiskAnalysis  string   `json:"risk_analysis"`
	UseCaseAgent  bool     `json:"-"`
	UsePolicyAgent bool    `json:"-"`
	CaseQuery     string   `json:"-"`
	PolicyQuery   string   `json:"-"`
}

// RiskLabel joins the plan's risk types for prompt interpolation.
func (p *Plan) RiskLabel() string {
	if p == nil || len(p.RiskTypes) == 0 {
		return "방송심의일반"
	}
	return strings.Join(p.RiskTypes, ", ")
}

// Reference is one cited evidence passage in the final answer.
type Reference struct {
	Identity     string  `json:"chroma_id"`
	SourceFile   string  `json:"doc_filename"`
	DocType      string  `json:"doc_type"`
	SectionTitle string  `json:"section_title"`
	Score        float32 `json:"relevance_score"`
}

// Answer is the synthesized review opinion. It may be overwritten by a retry
// round until the grader accepts it.
type Answer struct {
	Judgment        Judgment    `json:"judgment"`
	Reason          string      `json:"reason"`
	RiskType        string      `json:"risk_type"`
	RelatedArticles []string    `json:"related_articles"`
	SuggestedFix    string      `json:"suggested_fix"`
	References      []Reference `json:"references"`
}

// Grade is the answer grader's verdict.
type Grade struct {
	Pass     bool   `json:"pass"`
	Feedback string `json:"feedback"`
}

// TraceRecord is one structured entry in the workflow trace log. Unused
// fields stay at their zero value and are omitted from serialized output.
type TraceRecord struct {
	Step     string  `json:"step"`
	Query    string  `json:"query,omitempty"`
	OldQuery string  `json:"old_query,omitempty"`
	NewQuery string  `json:"new_query,omitempty"`
	Total    int     `json:"total,omitempty"`
	Relevant int     `json:"relevant,omitempty"`
	Retry    int     `json:"retry,omitempty"`
	Error    string  `json:"error,omitempty"`
	Elapsed  float64 `json:"elapsed"`
}

// Result is the workflow's sole output contract. Every run yields one,
// degraded or not; degraded answers are visible only through the reason text
// and the trace log.
type Result struct {
	Judgment        Judgment      `json:"judgment"`
	Reason          string        `json:"reason"`
	RiskType        string        `json:"risk_type"`
	RelatedArticles []string      `json:"related_articles"`
	SuggestedFix    string        `json:"suggested_fix"`
	References      []Reference   `json:"references"`
	Trace           []TraceRecord `json:"trace_log"`
}

// policyBuckets holds the policy agent's accepted evidence split by document
// type. Owned exclusively by the policy agent.
type policyBuckets struct {
	Law        []evidence.Item
	Regulation []evidence.Item
	Guideline  []evidence.Item
}

func (b policyBuckets) total() int {
	return len(b.Law) + len(b.Regulation) + len(b.Guideline)
}

func (b policyBuckets) all() []evidence.Item {
	out := make([]evidence.Item, 0, b.total())
	out = append(out, b.Law...)
	out = append(out, b.Regulation...)
	out = append(out, b.Guideline...)
	return out
}
