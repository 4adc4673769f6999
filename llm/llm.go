// Package llm defines the completion-service contract the review workflow is
// built against. Concrete providers live under provider/.
package llm

import (
	"context"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/message"
)

// Client defines the interface for LLM providers
type Client interface {
	// Generate produces a single assistant reply for the given conversation
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
