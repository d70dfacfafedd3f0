// Package captioner suggests captions for dataset images using an
// Ollama-hosted vision model.
package captioner

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"capset/pkg/transform"
	"capset/pkg/vocab"
)

const prompt = `Describe this image as a single line of short, comma-separated tags ` +
	`suitable for training-caption metadata. Respond with only the tag list, no prose.`

// Max long side and JPEG quality for the image sent to the model.
const (
	modelImageMaxSide = 1024
	modelImageQuality = 85
)

// Client asks a vision model for caption suggestions.
type Client struct {
	client *api.Client
	model  string
}

// New creates a Client for the Ollama server at serverURL.
func New(serverURL, model string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// Suggest returns a comma-separated tag list for the image at path.
func (c *Client) Suggest(ctx context.Context, path string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	payload, err := encodeForModel(path)
	if err != nil {
		return "", err
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{payload},
			},
		},
		Stream: &streamFalse,
	}

	var response string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	caption := sanitizeCaption(response)
	if caption == "" {
		return "", fmt.Errorf("empty caption from model %q", c.model)
	}
	return caption, nil
}

// encodeForModel loads the image, shrinks its longest side to the model
// cap, and encodes it as JPEG bytes.
func encodeForModel(path string) ([]byte, error) {
	img, err := transform.Open(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > modelImageMaxSide || b.Dy() > modelImageMaxSide {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, modelImageMaxSide, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, modelImageMaxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: modelImageQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sanitizeCaption turns a model response into a clean comma-separated
// tag list: code fences stripped, newlines treated as separators, tokens
// trimmed and deduplicated of empties.
func sanitizeCaption(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(raw, "` \n")
	raw = strings.ReplaceAll(raw, "\n", ",")

	return strings.Join(vocab.SplitCaption(raw), ", ")
}
