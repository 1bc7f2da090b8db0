// Package media acquires the image a skin analysis starts from: a frame from a
// live camera or a file chosen from the gallery.
package media

import (
	"errors"
	"fmt"
)

type SourceKind string

const (
	SourceCamera  SourceKind = "camera"
	SourceGallery SourceKind = "gallery"
)

// ImageAsset is a raw image, consumed once by an analysis.
type ImageAsset struct {
	Data     []byte
	MIMEType string
	Source   SourceKind
	Name     string
}

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera available")
	ErrStopped          = errors.New("camera is stopped")
	ErrNoFrame          = errors.New("camera feed has no frame")
	ErrNoSelection      = errors.New("no file selected")
	ErrNotImage         = errors.New("selected file is not an image")
)

// DeviceError means the camera could not be opened.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("camera unavailable: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureError means an open camera yielded no usable frame.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture failed: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// SelectionError means no usable file came out of the picker.
type SelectionError struct {
	Path string
	Err  error
}

func (e *SelectionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("selection failed: %v", e.Err)
	}
	return fmt.Sprintf("selection of %s failed: %v", e.Path, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// IsSilent reports errors the user caused on purpose, such as dismissing the picker.
func IsSilent(err error) bool {
	var selErr *SelectionError
	return errors.As(err, &selErr) && errors.Is(selErr.Err, ErrNoSelection)
}
