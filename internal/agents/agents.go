// Package agents holds the narrow request processors: free-form answers,
// image description, document summaries, web search and page reading, and
// image-prompt preparation. Each agent catches its own failures and returns
// user-facing text, never a raw error to the delivery layer.
package agents

import "context"

// Gateway is the slice of the model backend the agents need.
type Gateway interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	GenerateWithImage(ctx context.Context, model, prompt string, image []byte) (string, error)
}

// ModelSource resolves the currently selected model for a role at call
// time, so an admin switch takes effect without restarting agents.
type ModelSource interface {
	MainModel() string
	VisionModel() string
}
