// Package sse reads and writes text/event-stream frames.
//
// The chat endpoint, the OpenAI-compatible gateway provider and the client
// stream all speak the same dialect: one JSON payload per "data:" field, with
// a literal "[DONE]" payload terminating the stream.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DoneMarker terminates a chat completion stream.
const DoneMarker = "[DONE]"

const maxLineSize = 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	Event string
	ID    string
	Data  string
}

// IsDone reports whether the event carries the stream terminator.
func (e Event) IsDone() bool {
	return strings.TrimSpace(e.Data) == DoneMarker
}

// Reader pulls events off a stream one at a time.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event with a non-empty data field.
// It returns io.EOF once the underlying stream is exhausted.
func (r *Reader) Next() (Event, error) {
	var (
		evt     Event
		data    []string
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if hasData {
				evt.Data = strings.Join(data, "\n")
				return evt, nil
			}
			evt = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			evt.Event = value
		case "id":
			evt.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if hasData {
		evt.Data = strings.Join(data, "\n")
		return evt, nil
	}
	return Event{}, io.EOF
}

// WriteData frames payload as a single data event.
func WriteData(w io.Writer, payload []byte) error {
	var buf bytes.Buffer
	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteDone writes the terminator event.
func WriteDone(w io.Writer) error {
	return WriteData(w, []byte(DoneMarker))
}

// --- Chat completion chunk payloads ---

type chunkDelta struct {
	Content string `json:"content"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason,omitempty"`
}

type chunkPayload struct {
	Choices []chunkChoice `json:"choices"`
	Error   interface{}   `json:"error,omitempty"`
}

// EncodeDelta builds a chat completion chunk carrying one content delta.
func EncodeDelta(text string) []byte {
	b, _ := json.Marshal(chunkPayload{Choices: []chunkChoice{{Delta: chunkDelta{Content: text}}}})
	return b
}

// EncodeError builds a terminal in-band error payload.
func EncodeError(message string) []byte {
	b, _ := json.Marshal(map[string]string{"error": message})
	return b
}

// DecodeDelta extracts the content delta from a chunk payload.
// A payload carrying an "error" member is returned as an error.
func DecodeDelta(data string) (string, error) {
	var payload chunkPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", fmt.Errorf("decode chunk: %w", err)
	}
	if payload.Error != nil {
		return "", &StreamError{Message: errorMessage(payload.Error)}
	}

	var sb strings.Builder
	for _, choice := range payload.Choices {
		sb.WriteString(choice.Delta.Content)
	}
	return sb.String(), nil
}

// StreamError is an error reported in-band by the producer.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

func errorMessage(v interface{}) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}
