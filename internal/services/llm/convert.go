package llm

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"google.golang.org/genai"
)

// splitSystem validates the conversation and separates the first system message
func splitSystem(messages []interfaces.Message) ([]interfaces.Message, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	rest := make([]interfaces.Message, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		rest = append(rest, msg)
	}
	return rest, systemText, nil
}

// convertMessagesToGemini maps roles to Gemini's user/model roles.
// Returns the contents and the first system message, if any.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	rest, systemText, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	return contents, systemText, nil
}

// convertMessagesToClaude maps roles to Claude's user/assistant messages.
// Returns the messages and the first system message, if any.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	rest, systemText, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(rest))
	for _, msg := range rest {
		block := anthropic.NewTextBlock(msg.Content)
		switch strings.ToLower(msg.Role) {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(block))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(block))
		}
	}
	return claudeMessages, systemText, nil
}
