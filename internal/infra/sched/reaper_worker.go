package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cover-studio/internal/domain/ports/repository"
	"cover-studio/internal/infra/metrics"
)

// ReaperWorker periodically fails generation jobs stuck in processing.
// A job only sits in processing past the deadline when the process that
// claimed it died mid-batch; failing the row keeps status polling honest.
type ReaperWorker struct {
	interval   time.Duration
	staleAfter time.Duration
	jobs       repository.GenerationJobRepository
	log        *zerolog.Logger
}

func NewReaperWorker(interval, staleAfter time.Duration, jobs repository.GenerationJobRepository, logger *zerolog.Logger) *ReaperWorker {
	reaperLog := logger.With().Str("component", "ReaperWorker").Logger()
	return &ReaperWorker{
		interval:   interval,
		staleAfter: staleAfter,
		jobs:       jobs,
		log:        &reaperLog,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting stale-job reaper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale-job reaper")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.staleAfter)
			n, err := w.jobs.FailStaleProcessing(ctx, nil, cutoff)
			if err != nil {
				w.log.Error().Err(err).Msg("reaper error")
			}
			if n > 0 {
				metrics.AddJobsReaped(n)
				w.log.Warn().Int("count", n).Msg("stale processing jobs failed")
			}
		}
	}
}
