// Package remote talks to the virtual try-on inference API.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/providers"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	// result payloads are base64 encoded images
	maxResponseBytes = 32 << 20
)

var (
	ErrUnavailable = providers.ErrUnavailable
	ErrRemote      = providers.ErrRemote
)

// Client is a provider backed by the try-on API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for the API at baseURL
func New(config providers.Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string { return "tryonapi" }

type tryOnResponse struct {
	Success           bool   `json:"success"`
	ResultImageBase64 string `json:"result_image_base64,omitempty"`
	Error             string `json:"error,omitempty"`
}

// TryOn posts the clothing and optional avatar images to /virtual-tryon
func (c *Client) TryOn(ctx context.Context, req providers.Request) ([]byte, error) {
	if len(req.Clothing.Data) == 0 {
		return nil, fmt.Errorf("%w: clothing image is required", ErrRemote)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := writeFile(mw, "clothing_image", req.Clothing); err != nil {
		return nil, err
	}
	if req.Avatar != nil {
		if err := writeFile(mw, "avatar_image", *req.Avatar); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/virtual-tryon", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var result tryOnResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: status %d: failed to decode response: %v", ErrRemote, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, result.Error)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
	}
	if result.ResultImageBase64 == "" {
		return nil, fmt.Errorf("%w: response has no result image", ErrRemote)
	}

	img, err := base64.StdEncoding.DecodeString(result.ResultImageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid result image encoding: %v", ErrRemote, err)
	}
	return img, nil
}

func writeFile(mw *multipart.Writer, field string, img providers.Image) error {
	filename := img.Filename
	if filename == "" {
		filename = field + ".png"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write %s: %w", field, err)
	}
	return nil
}

// Health returns the status string reported by GET /health
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: health returned status %d", ErrRemote, resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("%w: failed to decode health response: %v", ErrRemote, err)
	}
	return health.Status, nil
}

// Healthy reports whether the service answered with status "healthy"
func (c *Client) Healthy(ctx context.Context) bool {
	status, err := c.Health(ctx)
	return err == nil && status == "healthy"
}
