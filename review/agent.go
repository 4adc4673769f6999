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

// gradeOutput is the batched relevance-classification JSON shape. doc_index
// is 1-based, matching the numbering in the prompt.
type gradeOutput struct {
	Grades []struct {
		DocIndex  int    `json:"doc_index"`
		Relevance string `json:"relevance"`
		Reason    string `json:"reason"`
	} `json:"grades"`
}

type rewriteOutput struct {
	Query string `json:"query"`
}

// batchGrade issues one relevance-classification call covering every item and
// returns the relevant subset. One call for the whole batch, not one per
// item. On any failure the full batch is returned: a grading outage must
// never silently drop evidence.
func batchGrade(ctx context.Context, client llm.Client, cfg *Config, logger *slog.Logger,
	systemPrompt, userPrompt string, phrase, riskLabel string,
	items []evidence.Item, formatDoc func(int, evidence.Item) string) []evidence.Item {

	docs := make([]string, len(items))
	for i, item := range items {
		docs[i] = formatDoc(i+1, item)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.StepTimeout)
	defer cancel()

	resp, err := client.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(userPrompt, phrase, riskLabel, strings.Join(docs, "\n\n---\n\n"))),
	})
	if err != nil {
		logger.Warn("relevance grading failed, keeping full batch", "error", err, "total", len(items))
		return items
	}

	out, err := decodeJSON[gradeOutput](resp.Text())
	if err != nil {
		logger.Warn("relevance grading unparseable, keeping full batch", "error", err, "total", len(items))
		return items
	}

	relevantIdx := make(map[int]struct{}, len(out.Grades))
	for _, g := range out.Grades {
		if g.Relevance == "relevant" {
			relevantIdx[g.DocIndex-1] = struct{}{}
		}
	}

	relevant := make([]evidence.Item, 0, len(relevantIdx))
	for i, item := range items {
		if _, ok := relevantIdx[i]; ok {
			relevant = append(relevant, item)
		}
	}
	return relevant
}

// rewriteQuery asks the model for a sharper search query. On failure the
// stale query is kept so the loop still makes a bounded retry.
func rewriteQuery(ctx context.Context, client llm.Client, cfg *Config, logger *slog.Logger,
	systemPrompt, userPrompt string, phrase, riskLabel, oldQuery string) string {

	callCtx, cancel := context.WithTimeout(ctx, cfg.StepTimeout)
	defer cancel()

	resp, err := client.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(userPrompt, phrase, riskLabel, oldQuery)),
	})
	if err != nil {
		logger.Warn("query rewrite failed, keeping previous query", "error", err)
		return oldQuery
	}

	out, err := decodeJSON[rewriteOutput](resp.Text())
	if err != nil || strings.TrimSpace(out.Query) == "" {
		logger.Warn("query rewrite output invalid, keeping previous query", "error", err)
		return oldQuery
	}
	return out.Query
}

// retrieve runs one evidence-store call under the step timeout. Adapter
// failure is treated as zero results.
func retrieve(ctx context.Context, searcher evidence.Searcher, cfg *Config, logger *slog.Logger,
	query string, kind evidence.Kind) []evidence.Item {

	callCtx, cancel := context.WithTimeout(ctx, cfg.StepTimeout)
	defer cancel()

	items, err := searcher.Search(callCtx, query, kind)
	if err != nil {
		logger.Error("evidence retrieval failed, treating as empty", "kind", kind, "error", err)
		return nil
	}
	return items
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

func timedStep(start time.Time, rec TraceRecord) TraceRecord {
	rec.Elapsed = elapsedSince(start)
	return rec
}
