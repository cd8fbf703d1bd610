package ai

import (
	"context"

	"cover-studio/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*NoopGenerator)(nil)

// NoopGenerator returns a canned 1x1 PNG. Used in dev mode so the whole
// pipeline can run without a provider key.
type NoopGenerator struct{}

func NewNoopGenerator() *NoopGenerator { return &NoopGenerator{} }

// A valid single-pixel PNG.
var noopPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (n *NoopGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) ([]byte, error) {
	return noopPNG, nil
}

func (n *NoopGenerator) Edit(ctx context.Context, base []byte, instruction string) ([]byte, error) {
	return noopPNG, nil
}
