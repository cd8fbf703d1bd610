package ai

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/infra/metrics"
)

var _ adapter.ImageGenerator = (*GeminiAdapter)(nil)

// GeminiAdapter generates and edits cover images through the official
// genai SDK using an image-output model.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: model}, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) ([]byte, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	for _, img := range req.ReferenceImages {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}})
	}
	return g.call(ctx, "generate", parts)
}

func (g *GeminiAdapter) Edit(ctx context.Context, base []byte, instruction string) ([]byte, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: "image/png", Data: base}},
		{Text: instruction},
	}
	return g.call(ctx, "edit", parts)
}

func (g *GeminiAdapter) call(ctx context.Context, op string, parts []*genai.Part) ([]byte, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	latency := time.Since(start)
	metrics.ObserveGeneration("gemini", op, int(latency/time.Millisecond), err == nil)
	if err != nil {
		return nil, classifyGemini(err)
	}

	img := firstInlineImage(resp)
	if img == nil {
		// The model answered without an image part; retrying the same
		// prompt tends to reproduce the refusal.
		return nil, adapter.Permanent(errors.New("gemini: response carried no image"))
	}
	return img, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// classifyGemini maps SDK failures onto the orchestrator's retry classes:
// overload and server-side errors are transient, everything the API
// explicitly rejected is permanent.
func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return adapter.Transient(err)
		default:
			return adapter.Permanent(err)
		}
	}
	// Network-level failure with no API verdict.
	return adapter.Transient(err)
}
