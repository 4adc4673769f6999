package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/graph"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/llm"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/pkg/logging"
)

// Pipeline wires the review workflow together: planner, the two concurrent
// evidence agents, synthesizer, and the grading loop.
//
// The execution graph has one fan-out/fan-in pair and one feedback edge:
//
//	plan → {case_agent, policy_agent} → synthesize → grade → route
//	route: pass or retries exhausted → end, otherwise back to synthesize
type Pipeline struct {
	cfg          *Config
	orchestrator *orchestrator
	caseAgent    *caseAgent
	policyAgent  *policyAgent
	synthesizer  *synthesizer
	grader       *answerGrader
	graph        *graph.Graph
	logger       *slog.Logger
	tracer       trace.Tracer
}

// New creates a fully wired review pipeline. The same LLM client serves every
// component; the evidence searcher covers both corpora through its kind
// parameter.
func New(client llm.Client, searcher evidence.Searcher, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("evidence searcher is required")
	}

	cfg := applyOptions(opts)
	logger := logging.WithComponent("review_pipeline").With("pipeline", cfg.Name)

	p := &Pipeline{
		cfg:          cfg,
		orchestrator: newOrchestrator(client, cfg, logger),
		caseAgent:    newCaseAgent(client, searcher, cfg, logger),
		policyAgent:  newPolicyAgent(client, searcher, cfg, logger),
		synthesizer:  newSynthesizer(client, cfg, logger),
		grader:       newAnswerGrader(client, cfg, logger),
		logger:       logger,
		tracer:       otel.Tracer("review"),
	}

	g := graph.NewBuilder().
		AddNode("start", graph.NodeTypeStart, p.startNode).
		AddNode("plan", graph.NodeTypeLLM, p.node(p.orchestrator.Plan)).
		AddNode("case_agent", graph.NodeTypeTool, p.node(p.caseAgent.Run)).
		AddNode("policy_agent", graph.NodeTypeTool, p.node(p.policyAgent.Run)).
		AddNode("synthesize", graph.NodeTypeLLM, p.node(p.synthesizer.Generate)).
		AddNode("grade", graph.NodeTypeLLM, p.node(p.grader.Grade)).
		AddConditionNode("route", p.route, map[string]string{
			"retry":  "synthesize",
			"accept": "end",
		}).
		AddNode("end", graph.NodeTypeEnd, p.endNode).
		AddEdge("start", "plan").
		AddEdge("plan", "case_agent").
		AddEdge("plan", "policy_agent").
		AddEdge("case_agent", "synthesize").
		AddEdge("policy_agent", "synthesize").
		AddEdge("synthesize", "grade").
		AddEdge("grade", "route").
		RequireAllParents("synthesize").
		SetStart("start").
		SetEnd("end").
		SetMaxVisits(cfg.AnswerMaxRetries + 2).
		Build()
	p.graph = g

	logger.Info("review pipeline initialised",
		"agent_max_retries", cfg.AgentMaxRetries,
		"answer_max_retries", cfg.AnswerMaxRetries,
		"step_timeout", cfg.StepTimeout,
	)
	return p, nil
}

// Run executes the workflow for one phrase. Every run yields a result with a
// judgment set: failures of any kind degrade to a caution answer whose reason
// describes the failure, they are never surfaced as errors.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	ctx, span := p.tracer.Start(ctx, "review.run",
		trace.WithAttributes(
			attribute.String("review.category", req.Category),
			attribute.String("review.broadcast_type", req.BroadcastType),
		))
	defer span.End()

	req.Phrase = strings.TrimSpace(req.Phrase)
	if req.Phrase == "" {
		return degradedResult(nil, "심의 대상 문구가 비어 있습니다")
	}

	p.logger.Info("review run started", "phrase", trimForLog(req.Phrase, 80))

	st := &workflowState{Input: req}
	if _, err := p.graph.Execute(ctx, graph.State{stateKey: st}); err != nil {
		p.logger.Error("workflow execution failed, releasing degraded answer", "error", err)
		return degradedResult(st, fmt.Sprintf("AI 검토 중 오류 발생: %v", err))
	}

	result := assembleResult(st)
	p.logger.Info("review run completed",
		"judgment", result.Judgment,
		"references", len(result.References),
		"retries", st.RetryCount,
	)
	span.SetAttributes(attribute.String("review.judgment", string(result.Judgment)))
	return result
}

// node adapts a state-mutating step into a graph node, converting panics into
// errors so the top level can degrade instead of crashing a branch goroutine.
func (p *Pipeline) node(fn func(context.Context, *workflowState)) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (_ graph.State, err error) {
		st, err := getState(state)
		if err != nil {
			return state, err
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("workflow step panic: %v", r)
			}
		}()
		fn(ctx, st)
		return state, nil
	}
}

func (p *Pipeline) startNode(ctx context.Context, state graph.State) (graph.State, error) {
	_, err := getState(state)
	return state, err
}

func (p *Pipeline) endNode(ctx context.Context, state graph.State) (graph.State, error) {
	return state, nil
}

// route decides the grading loop's next hop. Only a failed grade with budget
// remaining re-enters the synthesizer; an accepted answer is never written
// again.
func (p *Pipeline) route(ctx context.Context, state graph.State) (string, error) {
	st, err := getState(state)
	if err != nil {
		return "", err
	}

	if st.AnswerGrade == nil || st.AnswerGrade.Pass {
		return "accept", nil
	}
	if st.RetryCount >= st.MaxRetries {
		p.logger.Warn("answer retries exhausted, releasing ungraded answer",
			"retries", st.RetryCount, "feedback", st.AnswerGrade.Feedback)
		return "accept", nil
	}

	st.RetryCount++
	p.logger.Info("answer rejected, re-synthesizing",
		"retry", st.RetryCount, "feedback", st.AnswerGrade.Feedback)
	return "retry", nil
}

// assembleResult flattens the final state into the output contract.
func assembleResult(st *workflowState) *Result {
	answer := st.Answer
	if answer == nil {
		// No synthesizer output at all: degrade rather than fail.
		answer = fallbackAnswer(st.Plan.RiskLabel(), "AI 검토 결과가 생성되지 않았습니다")
	}
	return &Result{
		Judgment:        answer.Judgment,
		Reason:          answer.Reason,
		RiskType:        answer.RiskType,
		RelatedArticles: answer.RelatedArticles,
		SuggestedFix:    answer.SuggestedFix,
		References:      answer.References,
		Trace:           st.traceSnapshot(),
	}
}

// degradedResult builds the caution default for workflow-level failures.
func degradedResult(st *workflowState, reason string) *Result {
	result := &Result{
		Judgment: JudgmentCaution,
		Reason:   reason,
	}
	if st != nil {
		result.Trace = st.traceSnapshot()
	}
	result.Trace = append(result.Trace, TraceRecord{Step: "error", Error: reason})
	return result
}

func trimForLog(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "…"
	}
	return text
}
