package repository

import (
	"context"
	"time"

	"cover-studio/internal/domain/model"
)

type GenerationJobRepository interface {
	// Save upserts the full job row, including partial progress,
	// generated asset ids and the error list.
	Save(ctx context.Context, tx Tx, job *model.GenerationJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationJob, error)
	// FailStaleProcessing fails jobs stuck in processing since before the
	// cutoff; returns how many rows were touched. Used by the reaper so a
	// crashed process cannot strand rows forever.
	FailStaleProcessing(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
