package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxImageBytes bounds a dereferenced image reference.
const maxImageBytes = 20 * 1024 * 1024

// LoadImage resolves an Image to raw bytes and a MIME type. Providers that
// cannot hand a URL to the model (ollama, gemini inline parts) use it.
func LoadImage(ctx context.Context, client *http.Client, img Image) ([]byte, string, error) {
	switch {
	case len(img.Data) > 0:
		return img.Data, detectMIME(img.Data, img.MIMEType), nil
	case strings.HasPrefix(img.URL, "data:"):
		return DecodeDataURL(img.URL)
	case img.URL != "":
		return fetchImage(ctx, client, img.URL)
	default:
		return nil, "", fmt.Errorf("image has neither data nor url")
	}
}

// DecodeDataURL parses a base64 "data:<mime>;base64,<payload>" URL.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data url")
	}
	mimeType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("unsupported data url encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url: %w", err)
	}
	return data, detectMIME(data, mimeType), nil
}

// EncodeDataURL is the inverse of DecodeDataURL.
func EncodeDataURL(data []byte, mimeType string) string {
	return "data:" + detectMIME(data, mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image url: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, "", fmt.Errorf("client error: status code %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, "", fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return data, detectMIME(data, resp.Header.Get("Content-Type")), nil
}

func detectMIME(data []byte, declared string) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return mimetype.Detect(data).String()
}
