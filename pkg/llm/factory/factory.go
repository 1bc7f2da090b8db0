package factory

import (
	"context"
	"dermascan-be/pkg/llm"
	"dermascan-be/pkg/llm/gateway"
	"dermascan-be/pkg/llm/gemini"
	"dermascan-be/pkg/llm/ollama"
	"fmt"
)

// NewLLMProvider builds the backend named by providerType.
func NewLLMProvider(ctx context.Context, providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "gateway", "":
		if apiKey == "" {
			return nil, fmt.Errorf("gateway provider requires an api key")
		}
		return gateway.NewGatewayProvider(apiKey, baseURL, modelName), nil
	case "gemini":
		return gemini.NewGeminiProvider(ctx, apiKey, modelName)
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
