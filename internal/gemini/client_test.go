package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateImageRequestShape(t *testing.T) {
	var got generateContentRequest
	var gotPath, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"},{"inlineData":{"mimeType":"image/png","data":"UE5H"}}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "secret", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	url, err := c.GenerateImage(context.Background(), ImageRequest{
		Image:       ImageInput{DataBase64: "SU1H", MimeType: "image/jpeg"},
		Prompt:      "studio shot",
		AspectRatio: "9:16",
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if url != "data:image/png;base64,UE5H" {
		t.Fatalf("GenerateImage() = %q", url)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("contents = %+v", got.Contents)
	}
	parts := got.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.Data != "SU1H" || parts[0].InlineData.MimeType != "image/jpeg" {
		t.Fatalf("image part = %+v", parts[0])
	}
	if parts[1].Text != "studio shot" {
		t.Fatalf("text part = %+v", parts[1])
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ImageConfig == nil || got.GenerationConfig.ImageConfig.AspectRatio != "9:16" {
		t.Fatalf("generation config = %+v", got.GenerationConfig)
	}
}

func TestGenerateImageOmitsEmptyGenerationConfig(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"UE5H"}}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.GenerateImage(context.Background(), ImageRequest{
		Image:  ImageInput{DataBase64: "SU1H", MimeType: "image/jpeg"},
		Prompt: "x",
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if _, ok := raw["generationConfig"]; ok {
		t.Fatalf("request carries generationConfig without an aspect ratio: %s", raw["generationConfig"])
	}
}

func TestGenerateImageDefaultsMissingMimeType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"UE5H"}}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	url, err := c.GenerateImage(context.Background(), ImageRequest{
		Image:  ImageInput{DataBase64: "SU1H", MimeType: "image/jpeg"},
		Prompt: "x",
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if url != "data:image/png;base64,UE5H" {
		t.Fatalf("GenerateImage() = %q", url)
	}
}

func TestGenerateImageNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"I can't do that"}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.GenerateImage(context.Background(), ImageRequest{
		Image:  ImageInput{DataBase64: "SU1H", MimeType: "image/jpeg"},
		Prompt: "x",
	})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("GenerateImage() error = %v, want ErrNoImage", err)
	}
}

func TestGenerateImageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.GenerateImage(context.Background(), ImageRequest{
		Image:  ImageInput{DataBase64: "SU1H", MimeType: "image/jpeg"},
		Prompt: "x",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GenerateImage() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(apiErr.Body, "quota") {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestGenerateImageRejectsEmptySource(t *testing.T) {
	c := New(Options{HTTPClient: http.DefaultClient})
	if _, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"}); err == nil {
		t.Fatal("GenerateImage() error = nil, want empty source error")
	}
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantMime string
		wantData string
		wantErr  bool
	}{
		{name: "png", in: "data:image/png;base64,UE5H", wantMime: "image/png", wantData: "PNG"},
		{name: "bare base64", in: "SlBH", wantMime: "image/png", wantData: "JPG"},
		{name: "empty", in: "  ", wantErr: true},
		{name: "no comma", in: "data:image/png;base64", wantErr: true},
		{name: "bad payload", in: "data:image/png;base64,***", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mime, data, err := DecodeDataURL(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("DecodeDataURL() error = nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL() error = %v", err)
			}
			if mime != tc.wantMime || string(data) != tc.wantData {
				t.Fatalf("DecodeDataURL() = %q, %q", mime, data)
			}
		})
	}
}

func TestNewImageGeneratorUnknownBackend(t *testing.T) {
	if _, err := NewImageGenerator(context.Background(), "dalle", Options{}); err == nil {
		t.Fatal("NewImageGenerator() error = nil, want unknown backend")
	}
	gen, err := NewImageGenerator(context.Background(), "rest", Options{})
	if err != nil {
		t.Fatalf("NewImageGenerator(rest) error = %v", err)
	}
	if _, ok := gen.(*Client); !ok {
		t.Fatalf("NewImageGenerator(rest) = %T", gen)
	}
}
