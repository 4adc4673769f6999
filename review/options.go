package review

import (
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/tokenizer"
)

// Config groups every knob of the review workflow so callers can construct
// reproducible pipelines from plain values. No component reads configuration
// from anywhere else.
type Config struct {
	Name string // Logical name for tracing/logging

	AgentMaxRetries  int // Rewrite-loop bound shared by neither agent: each carries its own counter
	AnswerMaxRetries int // Synthesizer re-generation bound after a failed grade
	PolicyGradePool  int // Candidate cap before the policy batch-grading call
	SnippetLimit     int // Per-item character cap when formatting evidence blocks
	SummaryBudget    int // Token cap for the grader's evidence summary

	StepTimeout time.Duration // Per external call (LLM, evidence store)

	tokenizer *tokenizer.Tokenizer
}

// Option customises the workflow configuration.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Name:             "compliance-review",
		AgentMaxRetries:  3,
		AnswerMaxRetries: 2,
		PolicyGradePool:  15,
		SnippetLimit:     500,
		SummaryBudget:    3000,
		StepTimeout:      90 * time.Second,
	}
}

func applyOptions(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName overrides the logical pipeline name used in logs and spans.
func WithName(name string) Option {
	return func(cfg *Config) {
		if name != "" {
			cfg.Name = name
		}
	}
}

// WithAgentMaxRetries bounds each evidence agent's rewrite loop.
func WithAgentMaxRetries(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.AgentMaxRetries = n
		}
	}
}

// WithAnswerMaxRetries bounds the grader-driven re-synthesis loop. The
// synthesizer therefore runs at most n+1 times.
func WithAnswerMaxRetries(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.AnswerMaxRetries = n
		}
	}
}

// WithPolicyGradePool caps how many policy candidates enter the batched
// grading prompt; overflow passes through ungraded.
func WithPolicyGradePool(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.PolicyGradePool = n
		}
	}
}

// WithSnippetLimit caps evidence item length in synthesis prompts.
func WithSnippetLimit(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.SnippetLimit = n
		}
	}
}

// WithStepTimeout bounds every external call the workflow makes.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.StepTimeout = d
		}
	}
}

// WithTokenizer enables token-accurate budgeting of the grader's evidence
// summary. Without it the budget falls back to a rune count.
func WithTokenizer(tok *tokenizer.Tokenizer) Option {
	return func(cfg *Config) {
		cfg.tokenizer = tok
	}
}

// truncateBudget trims text to the configured summary budget, by tokens when
// a tokenizer is available, by runes otherwise.
func (cfg *Config) truncateBudget(text string) string {
	if cfg.tokenizer != nil {
		return cfg.tokenizer.Truncate(text, cfg.SummaryBudget)
	}
	runes := []rune(text)
	if len(runes) > cfg.SummaryBudget {
		return string(runes[:cfg.SummaryBudget])
	}
	return text
}
