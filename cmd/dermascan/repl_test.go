package main

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dermascan-be/pkg/client"
	"dermascan-be/pkg/media"
	"dermascan-be/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedAnalyzer struct{}

func (cannedAnalyzer) AnalyzeAsset(context.Context, client.Credentials, media.ImageAsset) (*client.Analysis, error) {
	return &client.Analysis{ID: "a-1", RawText: "Mild irritation", SummaryLine: "Mild irritation", Confidence: 70, Persisted: true}, nil
}

type cannedStream struct {
	chunks []string
	pos    int
}

func (s *cannedStream) Next() bool {
	s.pos++
	return s.pos <= len(s.chunks)
}
func (s *cannedStream) Text() string { return s.chunks[s.pos-1] }
func (s *cannedStream) Err() error   { return nil }
func (s *cannedStream) Close() error { return nil }

type cannedChatter struct{}

func (cannedChatter) Send(context.Context, client.Credentials, client.ChatRequest) (client.TextStream, error) {
	return &cannedStream{chunks: []string{"Use a ", "gentle cleanser."}}, nil
}

func TestREPL_FullSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skin.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())

	controller := session.NewController(cannedAnalyzer{}, cannedChatter{})
	controller.SignIn(session.UserContext{UserID: "u-1", Token: "t"})

	var out bytes.Buffer
	repl := &REPL{controller: controller, out: &out}
	input := strings.Join([]string{
		"/file " + path,
		"/analyze",
		"/chat",
		"How do I treat it?",
		"/back",
		"/quit",
		"/analyze",
	}, "\n")

	require.NoError(t, repl.Run(context.Background(), bufio.NewScanner(strings.NewReader(input))))

	text := out.String()
	assert.Contains(t, text, "Confidence: 70%")
	assert.Contains(t, text, "Use a gentle cleanser.")
	assert.Equal(t, session.Reviewing, controller.State())
	assert.Empty(t, controller.Snapshot().History)
	assert.Equal(t, 1, strings.Count(text, "Analyzing..."))
}

func TestREPL_QuitCommands(t *testing.T) {
	repl := &REPL{controller: session.NewController(cannedAnalyzer{}, cannedChatter{}), out: &bytes.Buffer{}}
	assert.True(t, repl.Handle(context.Background(), "/quit"))
	assert.True(t, repl.Handle(context.Background(), "/exit"))
	assert.False(t, repl.Handle(context.Background(), "  "))
}
