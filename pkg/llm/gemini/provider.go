// Package gemini calls Google's Gemini API directly through the genai SDK.
package gemini

import (
	"context"
	"dermascan-be/pkg/llm"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// modelsAPI is the subset of *genai.Models the provider needs.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type GeminiProvider struct {
	models     modelsAPI
	model      string
	httpClient *http.Client
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithModels(client.Models, model), nil
}

func newWithModels(models modelsAPI, model string) *GeminiProvider {
	return &GeminiProvider{
		models:     models,
		model:      strings.TrimPrefix(model, "google/"),
		httpClient: &http.Client{},
	}
}

func (p *GeminiProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model}, options...)
	contents, config, err := p.build(ctx, history, opts)
	if err != nil {
		return "", err
	}

	resp, err := p.models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// ChatStream pulls the first response eagerly so request failures surface here.
func (p *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.Stream, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model}, options...)
	contents, config, err := p.build(ctx, history, opts)
	if err != nil {
		return nil, err
	}

	next, stop := iter.Pull2(p.models.GenerateContentStream(ctx, opts.Model, contents, config))
	first, err, ok := next()
	if ok && err != nil {
		stop()
		return nil, classify(err)
	}

	return &stream{next: next, stop: stop, pending: first, hasPending: ok, done: !ok}, nil
}

func (p *GeminiProvider) build(ctx context.Context, history []llm.Message, opts *llm.Options) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
			continue
		case llm.RoleAssistant, "model":
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(msg.Content)}, genai.RoleModel))
			continue
		}

		parts := []*genai.Part{genai.NewPartFromText(msg.Content)}
		for _, img := range msg.Images {
			data, mimeType, err := llm.LoadImage(ctx, p.httpClient, img)
			if err != nil {
				return nil, nil, fmt.Errorf("load image: %w", err)
			}
			parts = append(parts, genai.NewPartFromBytes(data, mimeType))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, config, nil
}

// classify maps genai API errors onto llm.StatusError so callers can branch on status.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llm.StatusError{Provider: "gemini", StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

type stream struct {
	next       func() (*genai.GenerateContentResponse, error, bool)
	stop       func()
	pending    *genai.GenerateContentResponse
	hasPending bool
	text       string
	err        error
	done       bool
}

func (s *stream) Next() bool {
	for {
		var (
			resp *genai.GenerateContentResponse
			err  error
		)
		switch {
		case s.hasPending:
			resp, s.hasPending = s.pending, false
			s.pending = nil
		case s.done:
			return false
		default:
			var ok bool
			resp, err, ok = s.next()
			if !ok {
				s.done = true
				return false
			}
		}

		if err != nil {
			s.done = true
			s.err = classify(err)
			return false
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			s.text = text
			return true
		}
	}
}

func (s *stream) Text() string { return s.text }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.done = true
	s.hasPending = false
	s.stop()
	return nil
}
