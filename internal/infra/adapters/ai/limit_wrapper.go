package ai

import (
	"context"

	"cover-studio/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ImageGenerator = (*limitedGenerator)(nil)

// limitedGenerator bounds concurrent calls against the generation
// capability with a simple semaphore. Per-job variant calls are already
// sequential; this caps pressure across jobs.
type limitedGenerator struct {
	inner adapter.ImageGenerator
	sem   chan struct{}
}

func NewLimitedGenerator(inner adapter.ImageGenerator, maxConcurrent int) adapter.ImageGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) ([]byte, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}

func (l *limitedGenerator) Edit(ctx context.Context, base []byte, instruction string) ([]byte, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.Edit(ctx, base, instruction)
}
