package client

import (
	"context"
	"errors"
	"io"
	"net/http"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/pkg/sse"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one turn. The system prompt is built server side from
// AnalysisContext; AnalysisID lets the server fall back to the stored record.
type ChatRequest struct {
	Messages        []Message `json:"messages"`
	AnalysisContext string    `json:"analysisContext,omitempty"`
	AnalysisID      string    `json:"analysisId,omitempty"`
}

// TextStream is a single-pass sequence of reply deltas.
type TextStream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}

type ChatClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.ILogger
}

func NewChatClient(baseURL string, opts ...Option) *ChatClient {
	o := applyOptions(opts)
	return &ChatClient{baseURL: baseURL, httpClient: o.httpClient, logger: o.logger}
}

// Send opens the reply stream. Failures before the first chunk are returned
// here; later ones surface from Stream.Err as KindTransport.
func (c *ChatClient) Send(ctx context.Context, user Credentials, chat ChatRequest) (*Stream, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, joinURL(c.baseURL, ChatPath), user, chat)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "Failed to build request", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "Chat service unreachable", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, message := readError(resp)
		c.logger.Warn("CLIENT", "Chat call rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   body,
		})
		return nil, classifyChat(resp.StatusCode, body, message)
	}

	return &Stream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

// Stream reads reply deltas off an open event stream.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	text   string
	err    error
	done   bool
}

func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		evt, err := s.reader.Next()
		if err != nil {
			s.done = true
			// A stream that simply ends is complete.
			if !errors.Is(err, io.EOF) {
				s.err = &Error{Kind: KindTransport, Message: "Chat stream interrupted", Err: err}
			}
			return false
		}
		if evt.IsDone() {
			s.done = true
			return false
		}

		delta, err := sse.DecodeDelta(evt.Data)
		if err != nil {
			var streamErr *sse.StreamError
			if errors.As(err, &streamErr) {
				s.done = true
				s.err = &Error{Kind: KindTransport, Message: streamErr.Message, Err: err}
				return false
			}
			// Partial or foreign payloads are skipped.
			continue
		}
		if delta == "" {
			continue
		}

		s.text = delta
		return true
	}
}

func (s *Stream) Text() string { return s.text }
func (s *Stream) Err() error   { return s.err }

func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

// Collect drains s, calling onDelta for each chunk, and returns the whole reply.
func Collect(s TextStream, onDelta func(string)) (string, error) {
	defer s.Close()

	var full []byte
	for s.Next() {
		chunk := s.Text()
		full = append(full, chunk...)
		if onDelta != nil {
			onDelta(chunk)
		}
	}
	return string(full), s.Err()
}
