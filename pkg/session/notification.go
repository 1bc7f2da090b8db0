package session

import (
	"errors"

	"dermascan-be/pkg/client"
	"dermascan-be/pkg/media"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a short user-facing message.
type Notification struct {
	Level   Level
	Title   string
	Message string
	Err     error
}

// Notifier receives notifications. It is called without the controller lock held.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// describe turns a pipeline error into a title and an actionable message.
func describe(err error) (string, string) {
	var clientErr *client.Error
	if errors.As(err, &clientErr) {
		switch clientErr.Kind {
		case client.KindAuth:
			return "Not signed in", "Please sign in again to continue."
		case client.KindRateLimit:
			return "Slow down", client.MessageRateLimited
		case client.KindQuota:
			return "Out of credits", client.MessageQuota
		case client.KindUpload:
			return "Upload failed", "The image could not be uploaded. Check your connection and try again."
		case client.KindReference:
			return "Upload failed", "The image link could not be created. Please try again."
		case client.KindParse:
			return "Analysis failed", "The analysis came back in an unexpected format. Please try again."
		case client.KindPersistence:
			return "Not saved", "The analysis could not be saved, but you can still chat about it."
		case client.KindModel:
			return "Analysis failed", orDefault(clientErr.Message, "The analysis could not be completed. Please try again.")
		case client.KindTransport:
			return "Chat failed", orDefault(clientErr.Message, "The assistant could not be reached. Please try again.")
		}
	}

	switch {
	case errors.Is(err, media.ErrPermissionDenied):
		return "Camera unavailable", "Camera access was denied. You can upload a photo instead."
	case errors.Is(err, media.ErrNoDevice):
		return "Camera unavailable", "No camera was found. You can upload a photo instead."
	case isCaptureError(err):
		return "Capture failed", "No image could be taken from the camera. Please try again."
	case errors.Is(err, media.ErrNotImage):
		return "Unsupported file", "Please choose an image file."
	case isSelectionError(err):
		return "Unsupported file", "The selected file could not be read."
	case errors.Is(err, ErrSignedOut):
		return "Not signed in", "Please sign in to continue."
	case errors.Is(err, ErrChatInFlight):
		return "Please wait", "The assistant is still replying."
	case errors.Is(err, ErrBusy):
		return "Please wait", "The analysis is still running."
	case errors.Is(err, ErrNoAnalysis):
		return "No analysis yet", "Analyze an image before starting a chat."
	}
	return "Something went wrong", err.Error()
}

func isCaptureError(err error) bool {
	var e *media.CaptureError
	return errors.As(err, &e)
}

func isSelectionError(err error) bool {
	var e *media.SelectionError
	return errors.As(err, &e)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
