// Package gateway talks to an OpenAI-compatible chat completions endpoint
// such as the AI gateway fronting Gemini.
package gateway

import (
	"bytes"
	"context"
	"dermascan-be/pkg/llm"
	"dermascan-be/pkg/sse"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"

type GatewayProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Ensure GatewayProvider implements LLMProvider
var _ llm.LLMProvider = &GatewayProvider{}

// Request Payload Structure (OpenAI Compatible)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage carries either a plain string or a list of content parts.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGatewayProvider(apiKey, baseURL, model string) *GatewayProvider {
	return NewGatewayProviderWithClient(apiKey, baseURL, model, &http.Client{})
}

func NewGatewayProviderWithClient(apiKey, baseURL, model string, client *http.Client) *GatewayProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &GatewayProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  client,
	}
}

func (p *GatewayProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	resp, err := p.do(ctx, history, false, options)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("gateway returned error: %s", chatResp.Error.Message)
	}

	// An empty choices list is a valid, empty answer; callers apply their own fallbacks.
	if len(chatResp.Choices) == 0 {
		return "", nil
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *GatewayProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	// Wrap single prompt into a user message
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}
	return p.Chat(ctx, messages, options...)
}

func (p *GatewayProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.Stream, error) {
	resp, err := p.do(ctx, history, true, options)
	if err != nil {
		return nil, err
	}
	return &stream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

// do sends the request and returns the response only when the status is 200.
func (p *GatewayProvider) do(ctx context.Context, history []llm.Message, streaming bool, options []llm.Option) (*http.Response, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model}, options...)

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    toChatMessages(history),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      streaming,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &llm.StatusError{Provider: "gateway", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return resp, nil
}

func toChatMessages(history []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history))
	for _, msg := range history {
		if len(msg.Images) == 0 || msg.Role != llm.RoleUser {
			out = append(out, chatMessage{Role: msg.Role, Content: msg.Content})
			continue
		}

		parts := []contentPart{{Type: "text", Text: msg.Content}}
		for _, img := range msg.Images {
			url := img.URL
			if url == "" {
				url = llm.EncodeDataURL(img.Data, img.MIMEType)
			}
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
		}
		out = append(out, chatMessage{Role: msg.Role, Content: parts})
	}
	return out
}

type stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	text   string
	err    error
	done   bool
}

func (s *stream) Next() bool {
	for !s.done {
		evt, err := s.reader.Next()
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("read stream: %w", err)
			}
			return false
		}
		if evt.IsDone() {
			s.done = true
			return false
		}

		text, err := sse.DecodeDelta(evt.Data)
		if err != nil {
			var streamErr *sse.StreamError
			if errors.As(err, &streamErr) {
				s.done = true
				s.err = err
				return false
			}
			// Partial or non-chunk payloads are skipped.
			continue
		}
		if text == "" {
			continue
		}
		s.text = text
		return true
	}
	return false
}

func (s *stream) Text() string { return s.text }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.done = true
	return s.body.Close()
}
