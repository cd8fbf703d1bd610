package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/infra/metrics"
)

var _ adapter.ImageGenerator = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the generation port on the Images API.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) ([]byte, error) {
	size := openai.ImageGenerateParamsSize1536x1024
	if req.OutputClass == "vertical" {
		size = openai.ImageGenerateParamsSize1024x1536
	}

	start := time.Now()
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(o.model),
		N:      openai.Int(1),
		Size:   size,
	})
	latency := time.Since(start)
	metrics.ObserveGeneration("openai", "generate", int(latency/time.Millisecond), err == nil)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	return decodeImageData(resp)
}

func (o *OpenAIAdapter) Edit(ctx context.Context, base []byte, instruction string) ([]byte, error) {
	start := time.Now()
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(base), "source.png", "image/png"),
		},
		Prompt: instruction,
		Model:  openai.ImageModel(o.model),
	})
	latency := time.Since(start)
	metrics.ObserveGeneration("openai", "edit", int(latency/time.Millisecond), err == nil)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	return decodeImageData(resp)
}

func decodeImageData(resp *openai.ImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, adapter.Permanent(errors.New("openai: empty image response"))
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, adapter.Permanent(err)
	}
	return img, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return adapter.Transient(err)
		}
		return adapter.Permanent(err)
	}
	return adapter.Transient(err)
}
