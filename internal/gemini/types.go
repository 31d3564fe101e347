package gemini

import (
	"context"
	"errors"
	"fmt"
)

const DefaultImageModel = "gemini-2.5-flash-image"

var ErrNoImage = errors.New("no image was generated in the response")

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

type ImageRequest struct {
	Image       ImageInput
	Prompt      string
	AspectRatio string
}

// ImageGenerator returns the first generated image as a data URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, e.Body)
}
