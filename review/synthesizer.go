package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/llm"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/message"
)

// synthesizer turns the merged evidence into the final judgment. Precedent is
// placed first in the prompt so the model cites it before regulation and law.
// Any failure degrades to a caution answer; the fallback is a valid terminal
// answer, never a raised error.
type synthesizer struct {
	llm    llm.Client
	cfg    *Config
	logger *slog.Logger
}

// genOutput is the generator's raw JSON shape.
type genOutput struct {
	Judgment        string      `json:"judgment"`
	Reason          string      `json:"reason"`
	RiskType        string      `json:"risk_type"`
	RelatedArticles []string    `json:"related_articles"`
	SuggestedFix    string      `json:"suggested_fix"`
	References      []Reference `json:"references"`
}

func newSynthesizer(client llm.Client, cfg *Config, logger *slog.Logger) *synthesizer {
	return &synthesizer{llm: client, cfg: cfg, logger: logger}
}

// Generate writes a fresh answer into the state. Called once per grading
// round; a retry overwrites the previous answer.
func (s *synthesizer) Generate(ctx context.Context, st *workflowState) {
	start := time.Now()

	answer := s.generate(ctx, st)
	answer.References = reconcileReferences(answer.References, st.allEvidence())
	st.Answer = answer

	st.appendTrace(timedStep(start, TraceRecord{
		Step:  "synthesize",
		Retry: st.RetryCount,
	}))
}

func (s *synthesizer) generate(ctx context.Context, st *workflowState) *Answer {
	riskLabel := st.Plan.RiskLabel()
	category := valueOr(st.Input.Category, "미지정")

	userPrompt := fmt.Sprintf(generatorUser,
		st.Input.Phrase,
		category,
		riskLabel,
		s.formatBlock(st.CaseEvidence, "사례"),
		s.formatBlock(st.Policy.Guideline, "지침"),
		s.formatBlock(st.Policy.Regulation, "규정"),
		s.formatBlock(st.Policy.Law, "법률"),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	resp, err := s.llm.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, generatorSystem),
		message.NewMessage(message.RoleUser, userPrompt),
	})
	if err != nil {
		s.logger.Error("synthesis call failed, falling back to caution", "error", err)
		return fallbackAnswer(riskLabel, fmt.Sprintf("AI 생성 중 오류 발생: %v", err))
	}

	out, err := decodeJSON[genOutput](resp.Text())
	if err != nil {
		s.logger.Error("synthesis output unparseable, falling back to caution", "error", err)
		return fallbackAnswer(riskLabel, fmt.Sprintf("AI 응답 해석 중 오류 발생: %v", err))
	}

	judgment, ok := ParseJudgment(out.Judgment)
	if !ok {
		s.logger.Warn("synthesis produced unknown judgment, defaulting to caution", "judgment", out.Judgment)
		judgment = JudgmentCaution
	}

	answer := &Answer{
		Judgment:        judgment,
		Reason:          out.Reason,
		RiskType:        valueOr(out.RiskType, riskLabel),
		RelatedArticles: out.RelatedArticles,
		SuggestedFix:    out.SuggestedFix,
		References:      out.References,
	}
	if judgment == JudgmentOK {
		answer.SuggestedFix = ""
	}
	return answer
}

// formatBlock renders one evidence bucket as a labeled, truncated text block.
func (s *synthesizer) formatBlock(items []evidence.Item, label string) string {
	if len(items) == 0 {
		return fmt.Sprintf("(검색된 %s 근거 없음)", label)
	}

	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("[%s %d] (유사도: %.2f, ID: %s)\n  출처: %s | 유형: %s | 섹션: %s\n  내용: %s",
			label, i+1,
			item.Score,
			item.Identity,
			item.Provenance.SourceFile,
			item.Provenance.DocType,
			item.Provenance.SectionTitle,
			snippet(item.Content, s.cfg.SnippetLimit),
		))
	}
	return strings.Join(lines, "\n\n")
}

// fallbackAnswer is the deterministic caution default used whenever synthesis
// cannot produce a model answer.
func fallbackAnswer(riskLabel, reason string) *Answer {
	return &Answer{
		Judgment: JudgmentCaution,
		Reason:   reason,
		RiskType: riskLabel,
	}
}

// reconcileReferences unions the model's citations with every retrieved item
// so consulted evidence stays traceable even when the model omits it. Cited
// references come first; the union is deduplicated by identity.
func reconcileReferences(cited []Reference, retrieved []evidence.Item) []Reference {
	seen := make(map[string]struct{}, len(cited)+len(retrieved))
	out := make([]Reference, 0, len(cited)+len(retrieved))

	for _, ref := range cited {
		if ref.Identity != "" {
			if _, ok := seen[ref.Identity]; ok {
				continue
			}
			seen[ref.Identity] = struct{}{}
		}
		out = append(out, ref)
	}

	for _, item := range retrieved {
		if item.Identity == "" {
			continue
		}
		if _, ok := seen[item.Identity]; ok {
			continue
		}
		seen[item.Identity] = struct{}{}
		out = append(out, Reference{
			Identity:     item.Identity,
			SourceFile:   item.Provenance.SourceFile,
			DocType:      string(item.Provenance.DocType),
			SectionTitle: item.Provenance.SectionTitle,
			Score:        item.Score,
		})
	}
	return out
}
