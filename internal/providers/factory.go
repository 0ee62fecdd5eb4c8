package providers

import (
	"fmt"
	"os"

	"github.com/ChamsBouzaiene/interviewd/internal/interview"
)

// NewGeneratorFromEnv creates an interview.Generator based on environment
// variables. LLM_PROVIDER selects the backend; each backend reads its own
// key and model variables.
func NewGeneratorFromEnv() (interview.Generator, string, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		modelName := os.Getenv("OPENAI_MODEL")
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		baseURL := os.Getenv("OPENAI_BASE_URL")
		return NewOpenAIGenerator(apiKey, modelName, baseURL), modelName, nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := os.Getenv("ANTHROPIC_MODEL")
		if modelName == "" {
			modelName = "claude-3-5-sonnet-20241022"
		}
		return NewAnthropicGenerator(apiKey, modelName), modelName, nil

	case "gemini":
		// Google Gemini via its OpenAI-compatible endpoint.
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("GEMINI_API_KEY not set")
		}
		modelName := os.Getenv("GEMINI_MODEL")
		if modelName == "" {
			modelName = "gemini-1.5-flash"
		}
		baseURL := "https://generativelanguage.googleapis.com/v1beta/openai"
		return NewOpenAIGenerator(apiKey, modelName, baseURL), modelName, nil

	case "ollama":
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		modelName := os.Getenv("OLLAMA_MODEL")
		if modelName == "" {
			modelName = "llama3.1"
		}
		apiKey := os.Getenv("OLLAMA_API_KEY")
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAIGenerator(apiKey, modelName, baseURL), modelName, nil

	case "lmstudio":
		baseURL := os.Getenv("LMSTUDIO_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:1234/v1"
		}
		modelName := os.Getenv("LMSTUDIO_MODEL")
		if modelName == "" {
			modelName = "local-model"
		}
		apiKey := os.Getenv("LMSTUDIO_API_KEY")
		if apiKey == "" {
			apiKey = "lm-studio"
		}
		return NewOpenAIGenerator(apiKey, modelName, baseURL), modelName, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
