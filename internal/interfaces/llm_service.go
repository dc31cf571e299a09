package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// ContentRequest is a provider-agnostic content generation request
type ContentRequest struct {
	Messages          []Message
	Model             string // empty uses the default provider and model
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
	OutputSchema      map[string]interface{} // JSON schema for structured output (Gemini only)
}

// ContentResponse is a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider string
	Model    string
}

// ContentGenerator generates text with a language model. The AI evaluator,
// narrative generator and macro advisor all depend on this interface.
type ContentGenerator interface {
	// GenerateContent sends the request to the provider selected by the model
	// string (or the configured default) and returns the concatenated text.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - request: Messages, model and generation settings
	//
	// Returns:
	//   - *ContentResponse: Generated text with provider and model used
	//   - error: Error after retries are exhausted or the response is empty
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)

	// Close releases provider clients
	Close() error
}
