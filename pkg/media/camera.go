package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// JPEGQuality is used for every captured frame.
const JPEGQuality = 95

// Device is a camera that can be opened for a live feed.
type Device interface {
	// Open fails with ErrPermissionDenied or ErrNoDevice when the feed cannot start.
	Open(ctx context.Context) (FrameSource, error)
}

// FrameSource is an open camera feed.
type FrameSource interface {
	Frame() (image.Image, error)
	Close() error
}

// LiveCapture owns an open feed until Stop.
type LiveCapture struct {
	mu      sync.Mutex
	source  FrameSource
	stopped bool
	once    sync.Once
	stopErr error
	now     func() time.Time
}

// StartLiveCapture opens device. Every failure is a *DeviceError.
func StartLiveCapture(ctx context.Context, device Device) (*LiveCapture, error) {
	if device == nil {
		return nil, &DeviceError{Err: ErrNoDevice}
	}

	source, err := device.Open(ctx)
	if err != nil {
		return nil, &DeviceError{Err: err}
	}
	if source == nil {
		return nil, &DeviceError{Err: ErrNoDevice}
	}

	return &LiveCapture{source: source, now: time.Now}, nil
}

// Stop releases the device. It is safe to call any number of times.
func (c *LiveCapture) Stop() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stopped = true
		c.stopErr = c.source.Close()
	})
	return c.stopErr
}

func (c *LiveCapture) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// CaptureFrame grabs the current frame as a JPEG asset. The feed stays open.
func (c *LiveCapture) CaptureFrame() (ImageAsset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ImageAsset{}, &CaptureError{Err: ErrStopped}
	}

	frame, err := c.source.Frame()
	if err != nil {
		return ImageAsset{}, &CaptureError{Err: err}
	}
	if frame == nil || frame.Bounds().Empty() {
		return ImageAsset{}, &CaptureError{Err: ErrNoFrame}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return ImageAsset{}, &CaptureError{Err: fmt.Errorf("encode jpeg: %w", err)}
	}

	return ImageAsset{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Source:   SourceCamera,
		Name:     fmt.Sprintf("skin-image-%d.jpg", c.now().UnixMilli()),
	}, nil
}

// WithLiveCapture runs fn against an open feed and stops it on every path out.
func WithLiveCapture(ctx context.Context, device Device, fn func(*LiveCapture) error) error {
	capture, err := StartLiveCapture(ctx, device)
	if err != nil {
		return err
	}
	defer capture.Stop()

	return fn(capture)
}

// CaptureOnce opens device, takes one frame and releases it.
func CaptureOnce(ctx context.Context, device Device) (ImageAsset, error) {
	var asset ImageAsset
	err := WithLiveCapture(ctx, device, func(c *LiveCapture) error {
		var err error
		asset, err = c.CaptureFrame()
		return err
	})
	return asset, err
}
