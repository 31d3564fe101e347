package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// SDKClient is the google.golang.org/genai flavour of Client.
type SDKClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewSDK(ctx context.Context, opts Options) (*SDKClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if baseURL := strings.TrimRight(opts.BaseURL, "/"); baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL + "/"
	}
	if v := strings.TrimSpace(opts.APIVersion); v != "" {
		cc.HTTPOptions.APIVersion = v
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultImageModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &SDKClient{client: client, model: model, logger: logger}, nil
}

func (c *SDKClient) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.Image.DataBase64)
	if err != nil {
		return "", fmt.Errorf("decode source image: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("source image is empty")
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, req.Image.MimeType),
		genai.NewPartFromText(req.Prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var cfg *genai.GenerateContentConfig
	if req.AspectRatio != "" {
		cfg = &genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: req.AspectRatio},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				mimeType := strings.TrimSpace(p.InlineData.MIMEType)
				if mimeType == "" {
					mimeType = "image/png"
				}
				c.logger.Debug("genai image generated", "model", c.model, "aspect_ratio", req.AspectRatio)
				return EncodeDataURL(mimeType, base64.StdEncoding.EncodeToString(p.InlineData.Data)), nil
			}
		}
	}
	return "", ErrNoImage
}

var _ ImageGenerator = (*SDKClient)(nil)

// NewImageGenerator picks a backend by name: "rest" (default) or "genai".
func NewImageGenerator(ctx context.Context, backend string, opts Options) (ImageGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "rest":
		return New(opts), nil
	case "genai":
		client, err := NewSDK(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", backend)
	}
}
