package factory

import (
	"context"
	"dermascan-be/pkg/llm/gateway"
	"dermascan-be/pkg/llm/ollama"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewLLMProvider(ctx, "gateway", "google/gemini-2.5-flash", "", "key")
	require.NoError(t, err)
	assert.IsType(t, &gateway.GatewayProvider{}, p)

	p, err = NewLLMProvider(ctx, "ollama", "llava", "", "")
	require.NoError(t, err)
	assert.IsType(t, &ollama.OllamaProvider{}, p)
	assert.Equal(t, "http://localhost:11434", p.(*ollama.OllamaProvider).BaseURL)

	_, err = NewLLMProvider(ctx, "gateway", "m", "", "")
	assert.Error(t, err)

	_, err = NewLLMProvider(ctx, "gemini", "m", "", "")
	assert.Error(t, err)

	_, err = NewLLMProvider(ctx, "openai", "m", "", "k")
	assert.Error(t, err)
}
