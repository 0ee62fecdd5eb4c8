package providers

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/interviewd/internal/session"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicGenerator produces interview replies via the Anthropic
// Messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicGenerator creates an Anthropic-backed generator.
func NewAnthropicGenerator(apiKey, modelName string) *AnthropicGenerator {
	return &AnthropicGenerator{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}
}

// Generate sends the full history plus the interviewer instruction and
// returns the reply text. Audio turns are rejected: the Messages API has
// no audio content block.
func (g *AnthropicGenerator) Generate(ctx context.Context, history []session.Turn, instruction string) (string, error) {
	msgs := make([]anthropic.Message, 0, len(history))
	for _, t := range history {
		switch t.Speaker {
		case session.SpeakerModel:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.Text)},
			})
		default:
			if len(t.Audio) > 0 {
				return "", fmt.Errorf("audio input is not supported by the anthropic provider")
			}
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.Text)},
			})
		}
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		Messages:  msgs,
		MaxTokens: 1024,
	}
	if instruction != "" {
		req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: instruction}}
	}

	resp, err := g.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty response from anthropic")
	}
	return text, nil
}
