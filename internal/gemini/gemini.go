package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/tryon/internal/providers"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash-image"

// Gemini is a try-on provider backed by Google Gemini image generation
type Gemini struct {
	config providers.Config
}

// New returns a new Gemini provider
func New(config providers.Config) *Gemini {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Prompt == "" {
		config.Prompt = providers.DefaultPrompt
	}
	return &Gemini{config: config}
}

func (g *Gemini) Name() string { return "gemini" }

// TryOn sends the avatar and clothing images with the try-on prompt and
// returns the first image Gemini generates
func (g *Gemini) TryOn(ctx context.Context, req providers.Request) ([]byte, error) {
	if g.config.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", providers.ErrUnavailable)
	}
	if req.Avatar == nil {
		return nil, fmt.Errorf("%w: gemini needs an avatar image", providers.ErrRemote)
	}

	opts := []option.ClientOption{option.WithAPIKey(g.config.APIKey)}
	if g.config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.config.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create new gemini client: %v", providers.ErrUnavailable, err)
	}
	defer client.Close()

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	model := client.GenerativeModel(g.config.Model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(g.config.Prompt),
		genai.ImageData(format(*req.Avatar), req.Avatar.Data),
		genai.ImageData(format(req.Clothing), req.Clothing.Data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate content: %v", providers.ErrUnavailable, err)
	}

	return firstImage(resp)
}

func format(img providers.Image) string {
	f := strings.TrimPrefix(img.ContentType, "image/")
	if f == "" || f == img.ContentType {
		return "png"
	}
	return f
}

func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned from Gemini", providers.ErrRemote)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty content returned from Gemini", providers.ErrRemote)
	}

	var text []string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if strings.HasPrefix(p.MIMEType, "image/") && len(p.Data) > 0 {
				return p.Data, nil
			}
		case genai.Text:
			text = append(text, string(p))
		}
	}

	if len(text) > 0 {
		return nil, fmt.Errorf("%w: Gemini returned text instead of an image: %s", providers.ErrRemote, strings.Join(text, " "))
	}
	return nil, fmt.Errorf("%w: unexpected response format from Gemini", providers.ErrRemote)
}
