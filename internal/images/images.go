package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrInvalidFile is returned for uploads that are not images or are too large
var ErrInvalidFile = errors.New("invalid file")

// DefaultMaxUploadBytes is the upload limit used when none is configured
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// MaxPixels bounds the decoded size of any image. Compressed formats can
// declare dimensions far larger than their byte size suggests.
const MaxPixels = 40_000_000

// ValidateUpload rejects non-image MIME types and files over limit bytes.
// It is meant to run before any decoding or state change.
func ValidateUpload(contentType string, size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: %q is not an image type", ErrInvalidFile, contentType)
	}
	if size > limit {
		return fmt.Errorf("%w: file size %d exceeds limit of %d bytes", ErrInvalidFile, size, limit)
	}
	if size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	return nil
}

// SniffType returns the MIME type detected from the first bytes of data
func SniffType(data []byte) string {
	return http.DetectContentType(data)
}

// Decode decodes png, jpeg, gif or webp data and returns the format name.
// The header is checked first so oversized images are rejected before any
// pixel buffer is allocated.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read image header: %v", ErrInvalidFile, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrInvalidFile)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: image is %dx%d, larger than %d pixels", ErrInvalidFile, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to decode image: %v", ErrInvalidFile, err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeDataURI builds a base64 data URI
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURI reports whether ref looks like a data URI
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// DecodeDataURI parses a base64 data URI into its MIME type and payload
func DecodeDataURI(uri string) (string, []byte, error) {
	if !IsDataURI(uri) {
		return "", nil, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: missing ','")
	}
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("unsupported data URI encoding: only base64 is supported")
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return mimeType, data, nil
}
