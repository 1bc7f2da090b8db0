package ollama

import (
	"context"
	"dermascan-be/pkg/llm"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_ChatInlinesImages(t *testing.T) {
	var captured ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"a mole"},"done":true}`))
	}))
	defer srv.Close()

	img := llm.EncodeDataURL([]byte("pixels"), "image/png")
	p := NewOllamaProvider(srv.URL, "llava")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "what is it", Images: []llm.Image{{URL: img}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "a mole", out)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pixels")), captured.Messages[0].Images[0])
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"role":"assistant","content":"Use "},"done":false}`,
			`{"message":{"role":"assistant","content":"sunscreen"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		}
		_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	}))
	defer srv.Close()

	s, err := NewOllamaProvider(srv.URL, "llava").ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	defer s.Close()

	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Text())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, "Use sunscreen", sb.String())
}

func TestOllamaProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, llm.StatusCode(err))
}
