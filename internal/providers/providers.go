package providers

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the provider could not be reached or timed out
	ErrUnavailable = errors.New("try-on service unavailable")
	// ErrRemote means the provider answered but did not produce an image
	ErrRemote = errors.New("try-on service error")
)

// DefaultPrompt is sent to generative providers alongside the two images
const DefaultPrompt = "Dress the person in the first image in the clothing item shown in the second image. " +
	"Keep the person's face, pose, body shape and background unchanged. Return only the edited photo."

// Config represents the configuration for a try-on provider
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Prompt  string
}

// Image is an encoded image file sent to a provider
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request is a single try-on submission. Avatar may be nil when the service
// manages its own camera feed.
type Request struct {
	Clothing Image
	Avatar   *Image
}

// Provider defines the interface for a try-on inference backend.
// TryOn returns the encoded result image.
type Provider interface {
	Name() string
	TryOn(ctx context.Context, req Request) ([]byte, error)
}
