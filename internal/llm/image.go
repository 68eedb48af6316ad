package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultImageModel = openai.CreateImageModelDallE3
	DefaultImageSize  = openai.CreateImageSize1024x1024

	// maxImageBytes bounds downloads of generated images
	maxImageBytes = 16 << 20

	downloadTimeout = 30 * time.Second
)

// ErrNoImage is returned when the image API answers without a URL
var ErrNoImage = errors.New("llm: no image returned")

// ImageConfig configures an ImageGenerator
type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
}

// ImageGenerator renders post illustrations through the OpenAI images API
type ImageGenerator struct {
	api   *openai.Client
	http  *http.Client
	model string
	size  string
}

// NewImageGenerator creates an ImageGenerator. The key falls back to OPENAI_API_KEY.
func NewImageGenerator(cfg ImageConfig) (*ImageGenerator, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = firstEnv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY for image generation", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultImageModel
	}
	if cfg.Size == "" {
		cfg.Size = DefaultImageSize
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ImageGenerator{
		api:   openai.NewClientWithConfig(clientCfg),
		http:  &http.Client{Timeout: downloadTimeout},
		model: cfg.Model,
		size:  cfg.Size,
	}, nil
}

// ImagePrompt is the prompt used for a post illustration
func ImagePrompt(triggerWord string) string {
	return strings.TrimSpace(triggerWord) + " is in a restaurant"
}

// Generate returns the URL of a freshly generated image
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("llm: create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrNoImage
	}
	return resp.Data[0].URL, nil
}

// Download fetches an image so it can be attached to a post
func (g *ImageGenerator) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("llm: download image: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: download image: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("llm: download image: %w", err)
	}
	return data, nil
}
