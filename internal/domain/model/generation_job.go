package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"cover-studio/internal/domain"
)

type GenerationJobStatus string

const (
	GenerationJobStatusPending    GenerationJobStatus = "pending"
	GenerationJobStatusProcessing GenerationJobStatus = "processing"
	GenerationJobStatusCompleted  GenerationJobStatus = "completed"
	GenerationJobStatusFailed     GenerationJobStatus = "failed"
)

// VariantError records a single failed variant attempt inside a job.
// A variant failure never aborts the job; it is carried to the caller
// through status polling.
type VariantError struct {
	Variant int    `json:"variant"`
	Style   string `json:"style"`
	Message string `json:"message"`
}

// GenerationJob tracks one asynchronous cover-generation request for a
// subject. The row is the single source of truth: any process instance
// can answer a status poll from it.
type GenerationJob struct {
	ID                string
	SubjectID         string
	UserID            string
	OutputClass       string
	Status            GenerationJobStatus
	Progress          int // 0..100, monotonic within a job
	CurrentVariant    int
	TotalVariants     int
	GeneratedAssetIDs []string // append-only while processing
	Errors            []VariantError
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

func NewGenerationJob(userID, subjectID, outputClass string, totalVariants int) (*GenerationJob, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(subjectID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(outputClass) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &GenerationJob{
		ID:            ulid.Make().String(),
		SubjectID:     subjectID,
		UserID:        userID,
		OutputClass:   outputClass,
		Status:        GenerationJobStatusPending,
		TotalVariants: totalVariants,
		CreatedAt:     time.Now(),
	}, nil
}

// IsTerminal reports whether the job can no longer change state.
func (j *GenerationJob) IsTerminal() bool {
	return j.Status == GenerationJobStatusCompleted || j.Status == GenerationJobStatusFailed
}

// AdvanceTo bumps progress without ever letting it move backwards.
func (j *GenerationJob) AdvanceTo(progress int) {
	if progress > j.Progress {
		j.Progress = progress
	}
}

// AppendAssetID records a freshly persisted asset so in-flight status
// polls observe partial results.
func (j *GenerationJob) AppendAssetID(id string) {
	j.GeneratedAssetIDs = append(j.GeneratedAssetIDs, id)
}

// RecordError appends a per-variant failure.
func (j *GenerationJob) RecordError(variant int, style string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	j.Errors = append(j.Errors, VariantError{Variant: variant, Style: style, Message: msg})
}

// SuccessCount is the number of variants that produced an asset.
func (j *GenerationJob) SuccessCount() int {
	return len(j.GeneratedAssetIDs)
}
