package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrRefNotAllowed is returned for references outside what the fetcher may read
var ErrRefNotAllowed = errors.New("image reference not allowed")

// Fetcher resolves image references (data URIs, URLs and local paths) to bytes
type Fetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
	// BaseDir, when set, is the root for relative paths and no local path
	// may resolve outside it.
	BaseDir string
	// AllowURL decides whether an http(s) reference may be fetched.
	// Nil allows every URL.
	AllowURL func(rawURL string) bool
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		MaxBytes: DefaultMaxUploadBytes,
	}
}

// Resolve loads the bytes behind an image reference and returns them with
// their MIME type. The data is validated as an image upload.
func (f *Fetcher) Resolve(ctx context.Context, ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", fmt.Errorf("empty image reference")
	}

	var (
		data     []byte
		mimeType string
		err      error
	)
	switch {
	case IsDataURI(ref):
		mimeType, data, err = DecodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if f.AllowURL != nil && !f.AllowURL(ref) {
			return nil, "", fmt.Errorf("%w: %s", ErrRefNotAllowed, ref)
		}
		data, mimeType, err = f.download(ctx, ref)
	default:
		data, err = f.readFile(ref)
		mimeType = SniffType(data)
	}
	if err != nil {
		return nil, "", err
	}

	if err := ValidateUpload(mimeType, int64(len(data)), f.MaxBytes); err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

// download fetches an image over HTTP
func (f *Fetcher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	// Read one byte past the limit so oversize bodies are detected
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit()+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = SniffType(data)
	}

	slog.Debug("Downloaded image", "url", url, "bytes", len(data), "type", mimeType)
	return data, mimeType, nil
}

func (f *Fetcher) readFile(ref string) ([]byte, error) {
	path, err := f.localPath(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, f.limit()+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// localPath resolves ref against BaseDir and keeps it inside
func (f *Fetcher) localPath(ref string) (string, error) {
	if f.BaseDir == "" {
		return ref, nil
	}
	base, err := filepath.Abs(f.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image directory: %w", err)
	}

	path := filepath.FromSlash(ref)
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrRefNotAllowed, ref, f.BaseDir)
	}
	return path, nil
}

func (f *Fetcher) limit() int64 {
	if f.MaxBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return f.MaxBytes
}
