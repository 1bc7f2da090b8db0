package client

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindUpload      Kind = "upload"
	KindReference   Kind = "reference"
	KindModel       Kind = "model"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindQuota       Kind = "quota"
	KindTransport   Kind = "transport"
)

// Error is every failure this package returns. Status and Body carry the
// upstream answer when there was one.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, so errors.Is(err, ErrRateLimit) works for any rate limit error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUpload      = &Error{Kind: KindUpload}
	ErrReference   = &Error{Kind: KindReference}
	ErrModel       = &Error{Kind: KindModel}
	ErrParse       = &Error{Kind: KindParse}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrRateLimit   = &Error{Kind: KindRateLimit}
	ErrQuota       = &Error{Kind: KindQuota}
	ErrTransport   = &Error{Kind: KindTransport}
)

const (
	MessageRateLimited = "Rate limit exceeded. Please try again later."
	MessageQuota       = "AI credits exhausted. Please add credits to continue."
)

// classifyChat maps a failed chat response onto the chat taxonomy.
func classifyChat(status int, body, serverMessage string) *Error {
	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Message: MessageRateLimited, Status: status, Body: body}
	case http.StatusPaymentRequired:
		return &Error{Kind: KindQuota, Message: MessageQuota, Status: status, Body: body}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: orDefault(serverMessage, "Not signed in"), Status: status, Body: body}
	default:
		return &Error{Kind: KindTransport, Message: orDefault(serverMessage, http.StatusText(status)), Status: status, Body: body}
	}
}

// classifyAnalysis maps a failed vision response. Only auth failures are
// distinguished; everything else is a model failure.
func classifyAnalysis(status int, body, serverMessage string) *Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: orDefault(serverMessage, "Not signed in"), Status: status, Body: body}
	default:
		return &Error{Kind: KindModel, Message: orDefault(serverMessage, "AI analysis failed"), Status: status, Body: body}
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
