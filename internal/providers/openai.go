package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/interviewd/internal/session"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIGenerator produces interview replies via the OpenAI chat API.
// With a custom base URL it also serves OpenAI-compatible endpoints
// (Gemini, Ollama, LM Studio).
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates an OpenAI-backed generator. baseURL may be
// empty for the default endpoint.
func NewOpenAIGenerator(apiKey, modelName, baseURL string) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}
}

// Generate sends the full history plus the interviewer instruction and
// returns the reply text. Audio turns become inline input_audio content
// parts.
func (g *OpenAIGenerator) Generate(ctx context.Context, history []session.Turn, instruction string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if instruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instruction,
		})
	}

	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Speaker == session.SpeakerModel {
			role = openai.ChatMessageRoleAssistant
		}

		if len(t.Audio) > 0 {
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role: role,
				MultiContent: []openai.ChatMessagePart{{
					Type: openai.ChatMessagePartTypeInputAudio,
					InputAudio: &openai.ChatMessageInputAudio{
						Data:   base64.StdEncoding.EncodeToString(t.Audio),
						Format: audioFormat(t.MIME),
					},
				}},
			})
			continue
		}

		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: t.Text,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// audioFormat maps a mime type like "audio/webm" to the bare format tag
// the API expects.
func audioFormat(mime string) string {
	format := mime
	if idx := strings.Index(format, "/"); idx >= 0 {
		format = format[idx+1:]
	}
	if idx := strings.Index(format, ";"); idx >= 0 {
		format = format[:idx]
	}
	if format == "" {
		format = "webm"
	}
	return format
}
