// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lehigh-university-libraries/tryon/internal/compositor"
	"github.com/lehigh-university-libraries/tryon/internal/providers"
)

const (
	ProviderTryOnAPI = "tryonapi"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
)

// Config holds the environment-driven settings
type Config struct {
	DBPath string `env:"TRYON_DB_PATH" envDefault:"tryon.db"`

	Provider   string        `env:"TRYON_PROVIDER" envDefault:"tryonapi"`
	APIURL     string        `env:"TRYON_API_URL" envDefault:"http://localhost:8000"`
	APITimeout time.Duration `env:"TRYON_API_TIMEOUT" envDefault:"30s"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL"`

	CanvasWidth       int     `env:"TRYON_CANVAS_WIDTH" envDefault:"400"`
	CanvasHeight      int     `env:"TRYON_CANVAS_HEIGHT" envDefault:"500"`
	OverlayWidthRatio float64 `env:"TRYON_OVERLAY_WIDTH_RATIO" envDefault:"0.6"`
	OverlayTopRatio   float64 `env:"TRYON_OVERLAY_TOP_RATIO" envDefault:"0.3"`
	OverlayOpacity    float64 `env:"TRYON_OVERLAY_OPACITY" envDefault:"0.8"`

	MaxUploadBytes int64 `env:"TRYON_MAX_UPLOAD_BYTES" envDefault:"10485760"`

	CatalogFile string `env:"TRYON_CATALOG_FILE" envDefault:"catalog.yaml"`
	Camera      string `env:"TRYON_CAMERA"`

	// hosts the server may download handoff images from, besides the
	// URLs listed in the catalog
	ImageHosts []string `env:"TRYON_IMAGE_HOSTS" envSeparator:","`
}

// Load parses the process environment into a Config
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env cannot check on its own
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderTryOnAPI, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown TRYON_PROVIDER %q (expected %s, %s or %s)",
			c.Provider, ProviderTryOnAPI, ProviderGemini, ProviderOpenAI)
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.CanvasWidth, c.CanvasHeight)
	}
	if c.OverlayOpacity <= 0 || c.OverlayOpacity > 1 {
		return fmt.Errorf("TRYON_OVERLAY_OPACITY must be greater than 0 and at most 1, got %v", c.OverlayOpacity)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("TRYON_MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

// Canvas returns the compositing output size
func (c *Config) Canvas() compositor.Size {
	return compositor.Size{W: c.CanvasWidth, H: c.CanvasHeight}
}

// CompositorOptions returns the overlay placement and blend settings
func (c *Config) CompositorOptions() compositor.Options {
	return compositor.Options{
		OverlayWidthRatio: c.OverlayWidthRatio,
		OverlayTopRatio:   c.OverlayTopRatio,
		Opacity:           c.OverlayOpacity,
	}
}

// ImageHostAllowed reports whether rawURL points at one of TRYON_IMAGE_HOSTS
func (c *Config) ImageHostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	for _, h := range c.ImageHosts {
		if strings.EqualFold(strings.TrimSpace(h), u.Hostname()) {
			return true
		}
	}
	return false
}

// ProviderConfig returns the settings for the selected try-on provider
func (c *Config) ProviderConfig() providers.Config {
	pc := providers.Config{Timeout: c.APITimeout}
	switch c.Provider {
	case ProviderGemini:
		pc.APIKey = c.GeminiAPIKey
		pc.Model = c.GeminiModel
	case ProviderOpenAI:
		pc.APIKey = c.OpenAIAPIKey
		pc.Model = c.OpenAIModel
	default:
		pc.BaseURL = c.APIURL
	}
	return pc
}
