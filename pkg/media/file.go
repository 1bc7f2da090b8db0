package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxFileBytes matches the server's request body limit.
const maxFileBytes = 10 * 1024 * 1024

// SelectFromFile loads a gallery image. An empty path means the picker was dismissed.
func SelectFromFile(path string) (ImageAsset, error) {
	if strings.TrimSpace(path) == "" {
		return ImageAsset{}, &SelectionError{Err: ErrNoSelection}
	}

	info, err := os.Stat(path)
	if err != nil {
		return ImageAsset{}, &SelectionError{Path: path, Err: err}
	}
	if info.IsDir() {
		return ImageAsset{}, &SelectionError{Path: path, Err: ErrNotImage}
	}
	if info.Size() > maxFileBytes {
		return ImageAsset{}, &SelectionError{Path: path, Err: fmt.Errorf("file is larger than %d bytes", maxFileBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ImageAsset{}, &SelectionError{Path: path, Err: err}
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return ImageAsset{}, &SelectionError{Path: path, Err: fmt.Errorf("%w: %s", ErrNotImage, mime.String())}
	}

	return ImageAsset{
		Data:     data,
		MIMEType: mime.String(),
		Source:   SourceGallery,
		Name:     filepath.Base(path),
	}, nil
}

// FileDevice is a camera whose feed is a still image on disk. It stands in for
// hardware in terminal front-ends and tests.
type FileDevice struct {
	Path string
}

func (d FileDevice) Open(_ context.Context) (FrameSource, error) {
	if d.Path == "" {
		return nil, ErrNoDevice
	}

	f, err := os.Open(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		return nil, ErrNoDevice
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return &stillSource{img: img}, nil
}

type stillSource struct {
	img image.Image
}

func (s *stillSource) Frame() (image.Image, error) { return s.img, nil }
func (s *stillSource) Close() error                { return nil }
