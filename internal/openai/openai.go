package openai

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

	"github.com/lehigh-university-libraries/tryon/internal/providers"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-image-1"
)

// OpenAI is a try-on provider backed by the OpenAI image edit endpoint
type OpenAI struct {
	config providers.Config
	client *http.Client
}

// New returns a new OpenAI provider
func New(config providers.Config) *OpenAI {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Prompt == "" {
		config.Prompt = providers.DefaultPrompt
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &OpenAI{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (o *OpenAI) Name() string { return "openai" }

// TryOn edits the avatar photo using the clothing image as a reference
func (o *OpenAI) TryOn(ctx context.Context, req providers.Request) ([]byte, error) {
	if o.config.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY environment variable not set", providers.ErrUnavailable)
	}
	if req.Avatar == nil {
		return nil, fmt.Errorf("%w: openai needs an avatar image", providers.ErrRemote)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("model", o.config.Model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := mw.WriteField("prompt", o.config.Prompt); err != nil {
		return nil, fmt.Errorf("failed to write prompt field: %w", err)
	}
	for _, img := range []providers.Image{*req.Avatar, req.Clothing} {
		if err := writeImage(mw, img); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", providers.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: received non-200 status code: %d - %s", providers.ErrRemote, resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response body: %v", providers.ErrRemote, err)
	}
	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: no image returned from OpenAI", providers.ErrRemote)
	}

	img, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image encoding: %v", providers.ErrRemote, err)
	}
	return img, nil
}

func writeImage(mw *multipart.Writer, img providers.Image) error {
	filename := img.Filename
	if filename == "" {
		filename = "image.png"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write image part: %w", err)
	}
	return nil
}
