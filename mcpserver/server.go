// Package mcpserver exposes the review workflow over the Model Context
// Protocol so agent hosts can request compliance judgments as a tool.
package mcpserver

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/review"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/service"
)

// Server wraps the MCP SDK server around a workflow runner.
type Server struct {
	MCPServer *sdkmcp.Server
	runner    service.Runner
}

// NewServer creates an MCP server exposing the review tools.
func NewServer(runner service.Runner) *Server {
	s := &Server{runner: runner}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "broadcast-compliance", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "review_phrase",
		Description: "Review a broadcast-advertising phrase for compliance. Returns a judgment (violation, caution, ok) with reasoning, cited references, and the workflow trace.",
	}, s.handleReviewPhrase)
}

// Run serves MCP over the given transport until the context ends.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

type reviewPhraseInput struct {
	Phrase        string `json:"phrase" jsonschema:"the advertising phrase to review"`
	Category      string `json:"category,omitempty" jsonschema:"product category, e.g. 가전, 식품"`
	BroadcastType string `json:"broadcast_type,omitempty" jsonschema:"broadcast type, e.g. TV홈쇼핑, 라이브커머스"`
}

type reviewPhraseOutput struct {
	Judgment        string               `json:"judgment"`
	Reason          string               `json:"reason"`
	RiskType        string               `json:"risk_type"`
	RelatedArticles []string             `json:"related_articles"`
	SuggestedFix    string               `json:"suggested_fix"`
	References      []review.Reference   `json:"references"`
	Trace           []review.TraceRecord `json:"trace_log"`
}

func (s *Server) handleReviewPhrase(ctx context.Context, _ *sdkmcp.CallToolRequest, input reviewPhraseInput) (*sdkmcp.CallToolResult, reviewPhraseOutput, error) {
	result := s.runner.Run(ctx, review.Request{
		Phrase:        input.Phrase,
		Category:      input.Category,
		BroadcastType: input.BroadcastType,
	})

	return nil, reviewPhraseOutput{
		Judgment:        string(result.Judgment),
		Reason:          result.Reason,
		RiskType:        result.RiskType,
		RelatedArticles: result.RelatedArticles,
		SuggestedFix:    result.SuggestedFix,
		References:      result.References,
		Trace:           result.Trace,
	}, nil
}
