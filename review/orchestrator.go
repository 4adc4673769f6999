package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/llm"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/message"
)

// orchestrator classifies the phrase's risk and seeds one query per agent.
// It never fails terminally: any planner error degrades to the default plan.
type orchestrator struct {
	llm    llm.Client
	cfg    *Config
	logger *slog.Logger
}

// planOutput is the planner's raw JSON shape.
type planOutput struct {
	RiskTypes     []string `json:"risk_types"`
	RiskKeywords  []string `json:"risk_keywords"`
	RiskAnalysis  string   `json:"risk_analysis"`
	ToolsToUse    []string `json:"tools_to_use"`
	SearchQueries struct {
		Cases  []string `json:"cases"`
		Policy []string `json:"policy"`
	} `json:"search_queries"`
}

func newOrchestrator(client llm.Client, cfg *Config, logger *slog.Logger) *orchestrator {
	return &orchestrator{llm: client, cfg: cfg, logger: logger}
}

// Plan produces the retrieval plan for a request and resets the answer retry
// budget on the state.
func (o *orchestrator) Plan(ctx context.Context, st *workflowState) {
	start := time.Now()
	st.RetryCount = 0
	st.MaxRetries = o.cfg.AnswerMaxRetries

	plan := o.classify(ctx, st.Input)
	st.Plan = plan

	st.appendTrace(TraceRecord{
		Step:    "plan",
		Query:   plan.RiskLabel(),
		Elapsed: elapsedSince(start),
	})
}

func (o *orchestrator) classify(ctx context.Context, req Request) *Plan {
	fallback := defaultPlan(req)

	category := valueOr(req.Category, "미지정")
	broadcastType := valueOr(req.BroadcastType, "미지정")

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	resp, err := o.llm.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, plannerSystem),
		message.NewMessage(message.RoleUser, fmt.Sprintf(plannerUser, req.Phrase, category, broadcastType)),
	})
	if err != nil {
		o.logger.Warn("planner call failed, using default plan", "error", err)
		return fallback
	}

	out, err := decodeJSON[planOutput](resp.Text())
	if err != nil {
		o.logger.Warn("planner output invalid, using default plan", "error", err)
		return fallback
	}

	plan := &Plan{
		RiskTypes:    out.RiskTypes,
		RiskKeywords: out.RiskKeywords,
		RiskAnalysis: out.RiskAnalysis,
	}
	if len(plan.RiskTypes) == 0 {
		plan.RiskTypes = fallback.RiskTypes
	}

	tools := out.ToolsToUse
	if len(tools) == 0 {
		tools = []string{"case_search", "policy_search"}
	}
	for _, tool := range tools {
		switch tool {
		case "case_search":
			plan.UseCaseAgent = true
		case "policy_search":
			plan.UsePolicyAgent = true
		}
	}
	if !plan.UseCaseAgent && !plan.UsePolicyAgent {
		plan.UseCaseAgent = true
		plan.UsePolicyAgent = true
	}

	plan.CaseQuery = firstQuery(out.SearchQueries.Cases, plan.RiskAnalysis, req.Phrase)
	plan.PolicyQuery = firstQuery(out.SearchQueries.Policy, plan.RiskAnalysis, req.Phrase)
	return plan
}

// defaultPlan is the fixed fallback: one generic risk category, both agents
// enabled, the raw phrase as the seed query for each.
func defaultPlan(req Request) *Plan {
	return &Plan{
		RiskTypes:      []string{"방송심의일반"},
		UseCaseAgent:   true,
		UsePolicyAgent: true,
		CaseQuery:      req.Phrase,
		PolicyQuery:    req.Phrase,
	}
}

func firstQuery(queries []string, fallbacks ...string) string {
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			return q
		}
	}
	for _, f := range fallbacks {
		if strings.TrimSpace(f) != "" {
			return f
		}
	}
	return ""
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
