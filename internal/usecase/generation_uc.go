package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/domain/ports/repository"
	"cover-studio/internal/infra/logging"
	"cover-studio/internal/infra/metrics"
	red "cover-studio/internal/infra/redis"
)

// Runner executes detached tasks. The worker pool satisfies it.
type Runner interface {
	Submit(task func(ctx context.Context) error) error
}

// SubmitParams describes one generation batch for a subject.
type SubmitParams struct {
	UserID          string
	SubjectID       string
	SubjectTitle    string
	OutputClass     string
	VariantSpecs    []model.VariantSpec
	ReferenceInputs []model.ReferenceInput
}

// JobStatus is the poll view of a job, partial results included.
type JobStatus struct {
	JobID          string
	Status         model.GenerationJobStatus
	Progress       int
	CurrentVariant int
	TotalVariants  int
	Assets         []*model.Asset
	Errors         []model.VariantError
}

type GenerationUseCase interface {
	// Submit admits the batch against quota, persists a pending job and
	// dispatches processing. The returned job is the pending row; callers
	// poll Status for progress.
	Submit(ctx context.Context, p SubmitParams) (*model.GenerationJob, error)
	Status(ctx context.Context, jobID string) (*JobStatus, error)
	// Regenerate replaces every asset of (subject, output class) with a
	// fresh batch. Quota is checked before anything is deleted, and a
	// second regenerate for the same key is rejected while one runs.
	Regenerate(ctx context.Context, p SubmitParams) (*model.GenerationJob, error)
}

// GenerationTuning collects the knobs the orchestrator needs from config.
type GenerationTuning struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	DefaultAnchor     string
	RegenerateLockTTL time.Duration
}

type generationUseCase struct {
	jobs   repository.GenerationJobRepository
	assets repository.AssetRepository
	usage  repository.UsageRepository
	users  repository.UserRepository
	quota  QuotaUseCase
	gen    adapter.ImageGenerator
	store  adapter.ObjectStorage
	tm     repository.TransactionManager
	runner Runner
	locker red.Locker
	tuning GenerationTuning
	log    *zerolog.Logger
}

func NewGenerationUseCase(
	jobs repository.GenerationJobRepository,
	assets repository.AssetRepository,
	usage repository.UsageRepository,
	users repository.UserRepository,
	quota QuotaUseCase,
	gen adapter.ImageGenerator,
	store adapter.ObjectStorage,
	tm repository.TransactionManager,
	runner Runner,
	locker red.Locker,
	tuning GenerationTuning,
	logger *zerolog.Logger,
) GenerationUseCase {
	if tuning.MaxAttempts <= 0 {
		tuning.MaxAttempts = 3
	}
	if tuning.BackoffBase <= 0 {
		tuning.BackoffBase = 500 * time.Millisecond
	}
	if tuning.RegenerateLockTTL <= 0 {
		tuning.RegenerateLockTTL = 10 * time.Minute
	}
	genLog := logger.With().Str("component", "GenerationUC").Logger()
	return &generationUseCase{
		jobs:   jobs,
		assets: assets,
		usage:  usage,
		users:  users,
		quota:  quota,
		gen:    gen,
		store:  store,
		tm:     tm,
		runner: runner,
		locker: locker,
		tuning: tuning,
		log:    &genLog,
	}
}

func (uc *generationUseCase) Submit(ctx context.Context, p SubmitParams) (*model.GenerationJob, error) {
	if len(p.VariantSpecs) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one variant", domain.ErrNoVariants)
	}

	dec, err := uc.quota.Check(ctx, p.UserID, p.OutputClass)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, dec.Reason)
	}

	job, err := model.NewGenerationJob(p.UserID, p.SubjectID, p.OutputClass, len(p.VariantSpecs))
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		return nil, err
	}
	if err := uc.dispatch(ctx, job, p, "", ""); err != nil {
		return nil, err
	}
	return job, nil
}

func (uc *generationUseCase) Regenerate(ctx context.Context, p SubmitParams) (*model.GenerationJob, error) {
	if len(p.VariantSpecs) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one variant", domain.ErrNoVariants)
	}

	// Quota first. A denied regenerate must leave the existing assets
	// untouched.
	dec, err := uc.quota.Check(ctx, p.UserID, p.OutputClass)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, dec.Reason)
	}

	key := red.RegenerateKey(p.SubjectID, p.OutputClass)
	token, err := uc.locker.TryLock(ctx, key, uc.tuning.RegenerateLockTTL)
	if err != nil {
		return nil, err
	}

	existing, err := uc.assets.ListBySubject(ctx, nil, p.SubjectID, p.OutputClass)
	if err != nil {
		uc.unlock(key, token)
		return nil, err
	}
	for _, a := range existing {
		if a.StorageRef != "" {
			if derr := uc.store.Delete(ctx, a.StorageRef); derr != nil {
				// Orphaned payloads are tolerable; a dangling row is not.
				uc.log.Warn().Err(derr).Str("asset_id", a.ID).Msg("payload delete failed during regenerate")
			}
		}
		if derr := uc.assets.Delete(ctx, nil, a.ID); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
			uc.unlock(key, token)
			return nil, derr
		}
	}

	job, err := model.NewGenerationJob(p.UserID, p.SubjectID, p.OutputClass, len(p.VariantSpecs))
	if err != nil {
		uc.unlock(key, token)
		return nil, err
	}
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		uc.unlock(key, token)
		return nil, err
	}
	if err := uc.dispatch(ctx, job, p, key, token); err != nil {
		return nil, err
	}
	return job, nil
}

func (uc *generationUseCase) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	st := &JobStatus{
		JobID:          job.ID,
		Status:         job.Status,
		Progress:       job.Progress,
		CurrentVariant: job.CurrentVariant,
		TotalVariants:  job.TotalVariants,
		Errors:         job.Errors,
	}
	for _, id := range job.GeneratedAssetIDs {
		a, err := uc.assets.FindByID(ctx, nil, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since generation; the job row keeps the id.
			continue
		}
		if err != nil {
			return nil, err
		}
		st.Assets = append(st.Assets, a)
	}
	return st, nil
}

// dispatch hands the job to the pool. A saturated queue fails the job
// immediately rather than stranding a pending row nothing will pick up.
func (uc *generationUseCase) dispatch(ctx context.Context, job *model.GenerationJob, p SubmitParams, lockKey, lockToken string) error {
	err := uc.runner.Submit(func(taskCtx context.Context) error {
		uc.runJob(taskCtx, job, p, lockKey, lockToken)
		return nil
	})
	if err == nil {
		return nil
	}

	job.Status = model.GenerationJobStatusFailed
	job.RecordError(0, "", domain.ErrJobQueueFull)
	job.AdvanceTo(100)
	now := time.Now()
	job.CompletedAt = &now
	if serr := uc.jobs.Save(ctx, nil, job); serr != nil {
		uc.log.Error().Err(serr).Str("job_id", job.ID).Msg("failed to persist queue-full failure")
	}
	if lockKey != "" {
		uc.unlock(lockKey, lockToken)
	}
	metrics.IncJobFinished(string(model.GenerationJobStatusFailed))
	return fmt.Errorf("%w: %v", domain.ErrJobQueueFull, err)
}

// runJob is the detached batch loop. It owns the job row from here on;
// every state change is persisted so status polls see it.
func (uc *generationUseCase) runJob(ctx context.Context, job *model.GenerationJob, p SubmitParams, lockKey, lockToken string) {
	ctx = logging.WithJobID(logging.WithSubjectID(logging.WithUserID(ctx, job.UserID), job.SubjectID), job.ID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "runJob")()
	if lockKey != "" {
		defer uc.unlock(lockKey, lockToken)
	}

	started := time.Now()
	job.Status = model.GenerationJobStatusProcessing
	job.StartedAt = &started
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		log.Error().Err(err).Msg("failed to mark job processing")
		return
	}

	refs, err := uc.fetchReferences(ctx, p.ReferenceInputs)
	if err != nil {
		log.Error().Err(err).Msg("reference input unavailable, failing job")
		job.RecordError(0, "", fmt.Errorf("%w: %v", domain.ErrReferenceUnavailable, err))
		uc.finishJob(ctx, job)
		return
	}

	anchor := uc.styleAnchor(ctx, p.UserID)
	total := len(p.VariantSpecs)

	for i, spec := range p.VariantSpecs {
		job.CurrentVariant = i + 1
		job.AdvanceTo(variantProgress(i, total))
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			log.Warn().Err(err).Msg("progress save failed")
		}

		prompt := buildPrompt(p, spec, anchor)
		img, err := uc.generateVariant(ctx, prompt, refs, p.OutputClass)
		if err != nil {
			log.Warn().Err(err).Int("variant", i+1).Str("style", spec.Style).Msg("variant failed")
			job.RecordError(i+1, spec.Style, err)
			metrics.IncVariant("failure")
			continue
		}

		asset, err := uc.persistVariant(ctx, job, spec, i+1, img)
		if err != nil {
			log.Warn().Err(err).Int("variant", i+1).Msg("variant persist failed")
			job.RecordError(i+1, spec.Style, err)
			metrics.IncVariant("failure")
			continue
		}

		job.AppendAssetID(asset.ID)
		metrics.IncVariant("success")
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			log.Warn().Err(err).Msg("partial result save failed")
		}
	}

	uc.finishJob(ctx, job)
}

// generateVariant calls the provider with bounded exponential backoff on
// transient failures. Permanent failures are returned at once.
func (uc *generationUseCase) generateVariant(ctx context.Context, prompt string, refs [][]byte, outputClass string) ([]byte, error) {
	req := adapter.GenerateRequest{
		Prompt:          prompt,
		ReferenceImages: refs,
		OutputClass:     outputClass,
	}
	return retryImageCall(ctx, "generate", uc.tuning.MaxAttempts, uc.tuning.BackoffBase, func() ([]byte, error) {
		return uc.gen.Generate(ctx, req)
	})
}

// persistVariant uploads the payload, then writes the row. Selection of
// the first success happens inside the same transaction as the insert so
// a concurrent manual Select cannot leave two selected rows.
func (uc *generationUseCase) persistVariant(ctx context.Context, job *model.GenerationJob, spec model.VariantSpec, order int, img []byte) (*model.Asset, error) {
	asset, err := model.NewAsset(job.UserID, job.SubjectID, job.OutputClass, spec.Style, order)
	if err != nil {
		return nil, err
	}

	up, err := uc.store.Upload(ctx, img, adapter.UploadParams{
		Key:         assetKey(asset),
		ContentType: "image/png",
		Metadata:    map[string]string{"subject_id": job.SubjectID, "job_id": job.ID},
	})
	if err != nil {
		return nil, err
	}
	asset.StorageRef = up.Ref
	asset.URL = up.URL
	asset.SecureURL = up.SecureURL
	asset.Bytes = up.Bytes
	asset.Width = up.Width
	asset.Height = up.Height
	asset.Format = up.Format

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
		hasSelected, err := uc.assets.HasSelected(txCtx, tx, job.SubjectID)
		if err != nil {
			return err
		}
		asset.IsSelected = !hasSelected
		return uc.assets.Save(txCtx, tx, asset)
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// finishJob derives the terminal status and charges the ledger exactly
// once: one iteration plus one unit per surviving asset, only when the
// job completed. The charge is best effort; a completed job never flips
// back because bookkeeping failed.
func (uc *generationUseCase) finishJob(ctx context.Context, job *model.GenerationJob) {
	log := logging.With(ctx, uc.log)

	success := job.SuccessCount()
	if success > 0 {
		job.Status = model.GenerationJobStatusCompleted
	} else {
		job.Status = model.GenerationJobStatusFailed
	}
	job.AdvanceTo(100)
	done := time.Now()
	job.CompletedAt = &done
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		log.Error().Err(err).Msg("failed to persist terminal job state")
		return
	}
	metrics.IncJobFinished(string(job.Status))

	if job.Status != model.GenerationJobStatusCompleted {
		return
	}
	period := model.PeriodStart(time.Now())
	if err := uc.usage.Increment(ctx, nil, job.UserID, job.OutputClass, period, 1, success); err != nil {
		metrics.IncLedgerWriteFailure()
		log.Error().Err(err).Msg("usage increment failed, job stays completed")
	}
}

// fetchReferences resolves every reference payload before the first
// variant attempt. Any miss aborts the whole batch.
func (uc *generationUseCase) fetchReferences(ctx context.Context, inputs []model.ReferenceInput) ([][]byte, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	refs := make([][]byte, 0, len(inputs))
	for _, in := range inputs {
		data, err := uc.store.Download(ctx, in.StorageRef)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", in.StorageRef, err)
		}
		refs = append(refs, data)
	}
	return refs, nil
}

// styleAnchor prefers the user's stored anchor and falls back to the
// configured default. A lookup failure here is never fatal.
func (uc *generationUseCase) styleAnchor(ctx context.Context, userID string) string {
	user, err := uc.users.FindByID(ctx, nil, userID)
	if err == nil && strings.TrimSpace(user.StyleAnchor) != "" {
		return user.StyleAnchor
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("style anchor lookup failed, using default")
	}
	return uc.tuning.DefaultAnchor
}

func (uc *generationUseCase) unlock(key, token string) {
	if err := uc.locker.Unlock(context.Background(), key, token); err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("regenerate unlock failed")
	}
}

// variantProgress maps the position before attempt i to a percentage.
// 100 is reserved for terminal jobs, so in-flight progress caps at 99
// even when rounding would reach it on large batches.
func variantProgress(i, total int) int {
	p := int(math.Round(float64(i) / float64(total) * 100))
	if p > 99 {
		p = 99
	}
	return p
}

func assetKey(a *model.Asset) string {
	return fmt.Sprintf("covers/%s/%s/%s.png", a.SubjectID, a.OutputClass, a.ID)
}

var classLabels = map[string]string{
	"thumbnail": "wide 16:9 video cover",
	"vertical":  "tall 9:16 short-form cover",
	"banner":    "panoramic channel banner",
}

// buildPrompt composes the provider prompt from the subject, the variant
// spec and the style anchor. Deterministic: the same inputs always yield
// the same prompt.
func buildPrompt(p SubmitParams, spec model.VariantSpec, anchor string) string {
	label, ok := classLabels[p.OutputClass]
	if !ok {
		label = p.OutputClass + " cover"
	}

	parts := make([]string, 0, 6)
	parts = append(parts, fmt.Sprintf("Design a %s for the video %q.", label, p.SubjectTitle))
	if spec.Style != "" {
		parts = append(parts, "Visual style: "+spec.Style+".")
	}
	if spec.Mood != "" {
		parts = append(parts, "Mood: "+spec.Mood+".")
	}
	if spec.ColorScheme != "" {
		parts = append(parts, "Color scheme: "+spec.ColorScheme+".")
	}
	if spec.Emphasis != "" {
		parts = append(parts, "Emphasize: "+spec.Emphasis+".")
	}
	if anchor != "" {
		parts = append(parts, "Overall direction: "+anchor+".")
	}
	return strings.Join(parts, " ")
}
