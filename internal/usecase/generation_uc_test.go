//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/adapter"
	red "cover-studio/internal/infra/redis"
)

type genFixture struct {
	jobs   *memJobRepo
	assets *memAssetRepo
	usage  *memUsageRepo
	users  *memUserRepo
	quota  *stubQuota
	gen    *fakeGenerator
	store  *fakeStorage
	locker *fakeLocker
	runner *syncRunner
	uc     GenerationUseCase
}

func newGenFixture(t *testing.T, gen *fakeGenerator) *genFixture {
	t.Helper()
	f := &genFixture{
		jobs:   newMemJobRepo(),
		assets: newMemAssetRepo(),
		usage:  newMemUsageRepo(),
		users:  newMemUserRepo(),
		quota:  &stubQuota{},
		gen:    gen,
		store:  newFakeStorage(),
		locker: newFakeLocker(),
		runner: &syncRunner{},
	}
	f.uc = NewGenerationUseCase(
		f.jobs, f.assets, f.usage, f.users, f.quota, f.gen, f.store,
		&memTxManager{}, f.runner, f.locker,
		GenerationTuning{MaxAttempts: 3, BackoffBase: time.Millisecond, DefaultAnchor: "bold and click-worthy"},
		testLogger(),
	)
	return f
}

func variants(n int) []model.VariantSpec {
	out := make([]model.VariantSpec, n)
	for i := range out {
		out[i] = model.VariantSpec{Style: fmt.Sprintf("style-%d", i+1)}
	}
	return out
}

func submitParams(n int) SubmitParams {
	return SubmitParams{
		UserID:       "user-1",
		SubjectID:    "subject-1",
		SubjectTitle: "How To Sharpen A Chisel",
		OutputClass:  "thumbnail",
		VariantSpecs: variants(n),
	}
}

func TestGenerationSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("full batch completes and charges the ledger once", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())

		job, err := f.uc.Submit(ctx, submitParams(3))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}

		stored, err := f.jobs.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if stored.Status != model.GenerationJobStatusCompleted {
			t.Fatalf("status = %s", stored.Status)
		}
		if stored.Progress != 100 || len(stored.GeneratedAssetIDs) != 3 || len(stored.Errors) != 0 {
			t.Fatalf("unexpected job: %+v", stored)
		}

		totals, _ := f.usage.SumSince(ctx, nil, "user-1", "thumbnail", time.Time{})
		if totals.IterationsUsed != 1 || totals.AssetsGenerated != 3 {
			t.Fatalf("ledger = %+v, want 1 iteration / 3 assets", totals)
		}
		if f.store.uploads != 3 {
			t.Fatalf("uploads = %d", f.store.uploads)
		}
	})

	t.Run("first successful variant becomes the selected asset", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())

		job, err := f.uc.Submit(ctx, submitParams(3))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)

		if n := f.assets.selectedCount("subject-1"); n != 1 {
			t.Fatalf("selected count = %d", n)
		}
		first, err := f.assets.FindByID(ctx, nil, stored.GeneratedAssetIDs[0])
		if err != nil || !first.IsSelected {
			t.Fatalf("first asset should be selected: %+v err=%v", first, err)
		}
	})

	t.Run("permanent variant failure is tolerated", func(t *testing.T) {
		gen := newFakeGenerator(nil, adapter.Permanent(errors.New("policy rejection")), nil, nil)
		f := newGenFixture(t, gen)

		job, err := f.uc.Submit(ctx, submitParams(4))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)

		if stored.Status != model.GenerationJobStatusCompleted {
			t.Fatalf("status = %s", stored.Status)
		}
		if len(stored.GeneratedAssetIDs) != 3 || len(stored.Errors) != 1 {
			t.Fatalf("want 3 assets and 1 error, got %+v", stored)
		}
		if stored.Errors[0].Variant != 2 || stored.Errors[0].Style != "style-2" {
			t.Fatalf("error should name the failed variant: %+v", stored.Errors[0])
		}
		if gen.calls != 4 {
			t.Fatalf("permanent failure must not retry, calls = %d", gen.calls)
		}

		totals, _ := f.usage.SumSince(ctx, nil, "user-1", "thumbnail", time.Time{})
		if totals.IterationsUsed != 1 || totals.AssetsGenerated != 3 {
			t.Fatalf("ledger = %+v", totals)
		}
	})

	t.Run("upload failure counts as that variant's failure", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.store.uploadErrs = []error{nil, errors.New("bucket unavailable"), nil}

		job, err := f.uc.Submit(ctx, submitParams(3))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)

		if stored.Status != model.GenerationJobStatusCompleted {
			t.Fatalf("status = %s", stored.Status)
		}
		if len(stored.GeneratedAssetIDs) != 2 || len(stored.Errors) != 1 {
			t.Fatalf("want 2 assets and 1 error, got %+v", stored)
		}
		if stored.Errors[0].Variant != 2 || stored.Errors[0].Style != "style-2" {
			t.Fatalf("error should name the failed variant: %+v", stored.Errors[0])
		}

		// Generation succeeded three times, but only stored payloads get rows.
		if f.gen.calls != 3 || f.store.uploads != 2 {
			t.Fatalf("gen calls = %d, uploads = %d", f.gen.calls, f.store.uploads)
		}
		listed, _ := f.assets.ListBySubject(ctx, nil, "subject-1", "thumbnail")
		if len(listed) != 2 {
			t.Fatalf("asset rows = %d, want 2", len(listed))
		}

		totals, _ := f.usage.SumSince(ctx, nil, "user-1", "thumbnail", time.Time{})
		if totals.IterationsUsed != 1 || totals.AssetsGenerated != 2 {
			t.Fatalf("ledger = %+v", totals)
		}
	})

	t.Run("ledger write failure does not roll back a completed job", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.usage.incErr = errors.New("ledger down")

		job, err := f.uc.Submit(ctx, submitParams(2))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)

		if stored.Status != model.GenerationJobStatusCompleted || stored.Progress != 100 {
			t.Fatalf("job = %+v", stored)
		}
		if len(stored.GeneratedAssetIDs) != 2 {
			t.Fatalf("assets = %d", len(stored.GeneratedAssetIDs))
		}
		totals, _ := f.usage.SumSince(ctx, nil, "user-1", "thumbnail", time.Time{})
		if totals.IterationsUsed != 0 {
			t.Fatalf("failed increment must not record usage: %+v", totals)
		}
	})

	t.Run("selection moves to the first surviving variant", func(t *testing.T) {
		gen := newFakeGenerator(adapter.Permanent(errors.New("policy rejection")), nil, nil)
		f := newGenFixture(t, gen)

		job, err := f.uc.Submit(ctx, submitParams(3))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)

		if n := f.assets.selectedCount("subject-1"); n != 1 {
			t.Fatalf("selected count = %d", n)
		}
		first, err := f.assets.FindByID(ctx, nil, stored.GeneratedAssetIDs[0])
		if err != nil || !first.IsSelected || first.GenerationOrder != 2 {
			t.Fatalf("variant 2 should carry the selection: %+v err=%v", first, err)
		}
	})

	t.Run("transient failures retry with backoff and recover", func(t *testing.T) {
		gen := newFakeGenerator(
			adapter.Transient(errors.New("overloaded")),
			adapter.Transient(errors.New("overloaded")),
			nil,
		)
		f := newGenFixture(t, gen)

		job, err := f.uc.Submit(ctx, submitParams(1))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)
		if stored.Status != model.GenerationJobStatusCompleted || gen.calls != 3 {
			t.Fatalf("status=%s calls=%d", stored.Status, gen.calls)
		}
	})

	t.Run("every variant failing fails the job without charging", func(t *testing.T) {
		gen := newFakeGenerator(
			adapter.Permanent(errors.New("bad input")),
			adapter.Permanent(errors.New("bad input")),
		)
		f := newGenFixture(t, gen)

		job, err := f.uc.Submit(ctx, submitParams(2))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)
		if stored.Status != model.GenerationJobStatusFailed || stored.Progress != 100 {
			t.Fatalf("job = %+v", stored)
		}
		if f.usage.incCall != 0 {
			t.Fatalf("failed job must not touch the ledger")
		}
	})

	t.Run("empty variant list is rejected synchronously", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		_, err := f.uc.Submit(ctx, submitParams(0))
		if !errors.Is(err, domain.ErrNoVariants) {
			t.Fatalf("err = %v", err)
		}
		if len(f.jobs.jobs) != 0 {
			t.Fatalf("no job row should exist")
		}
	})

	t.Run("quota denial surfaces before a job exists", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.quota.decision = &QuotaDecision{Allowed: false, Reason: "limit reached"}

		_, err := f.uc.Submit(ctx, submitParams(2))
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("err = %v", err)
		}
		if len(f.jobs.jobs) != 0 || f.gen.calls != 0 {
			t.Fatalf("denied submit must not generate")
		}
	})

	t.Run("missing reference fails the job before any variant", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		p := submitParams(3)
		p.ReferenceInputs = []model.ReferenceInput{{StorageRef: "frames/missing.png", Kind: "frame"}}

		job, err := f.uc.Submit(ctx, p)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)
		if stored.Status != model.GenerationJobStatusFailed || len(stored.GeneratedAssetIDs) != 0 {
			t.Fatalf("job = %+v", stored)
		}
		if f.gen.calls != 0 || f.usage.incCall != 0 {
			t.Fatalf("no variant call and no charge expected")
		}
	})

	t.Run("saturated queue fails the job immediately", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.runner.submitErr = errors.New("worker queue full")

		_, err := f.uc.Submit(ctx, submitParams(2))
		if !errors.Is(err, domain.ErrJobQueueFull) {
			t.Fatalf("err = %v", err)
		}
		for _, j := range f.jobs.jobs {
			if j.Status != model.GenerationJobStatusFailed {
				t.Fatalf("job left in %s", j.Status)
			}
		}
	})
}

func TestVariantProgress(t *testing.T) {
	cases := []struct {
		i, total, want int
	}{
		{0, 4, 0},
		{1, 4, 25},
		{2, 3, 67},
		{1, 1, 99},
		{199, 200, 99},
	}
	for _, tc := range cases {
		if got := variantProgress(tc.i, tc.total); got != tc.want {
			t.Errorf("variantProgress(%d, %d) = %d, want %d", tc.i, tc.total, got, tc.want)
		}
	}
}

func TestGenerationStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports assets and errors of a finished job", func(t *testing.T) {
		gen := newFakeGenerator(nil, adapter.Permanent(errors.New("rejected")))
		f := newGenFixture(t, gen)

		job, _ := f.uc.Submit(ctx, submitParams(2))
		st, err := f.uc.Status(ctx, job.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.Status != model.GenerationJobStatusCompleted || len(st.Assets) != 1 || len(st.Errors) != 1 {
			t.Fatalf("status = %+v", st)
		}
	})

	t.Run("silently skips assets deleted after generation", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		job, _ := f.uc.Submit(ctx, submitParams(2))

		stored, _ := f.jobs.FindByID(ctx, nil, job.ID)
		f.assets.Delete(ctx, nil, stored.GeneratedAssetIDs[0])

		st, err := f.uc.Status(ctx, job.ID)
		if err != nil || len(st.Assets) != 1 {
			t.Fatalf("st=%+v err=%v", st, err)
		}
	})

	t.Run("unknown job returns not found", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		if _, err := f.uc.Status(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestGenerationRegenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the previous batch", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())

		first, _ := f.uc.Submit(ctx, submitParams(2))
		firstJob, _ := f.jobs.FindByID(ctx, nil, first.ID)

		second, err := f.uc.Regenerate(ctx, submitParams(3))
		if err != nil {
			t.Fatalf("Regenerate: %v", err)
		}
		secondJob, _ := f.jobs.FindByID(ctx, nil, second.ID)
		if secondJob.Status != model.GenerationJobStatusCompleted || len(secondJob.GeneratedAssetIDs) != 3 {
			t.Fatalf("second job = %+v", secondJob)
		}

		for _, id := range firstJob.GeneratedAssetIDs {
			if _, err := f.assets.FindByID(ctx, nil, id); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("old asset %s should be gone", id)
			}
		}
		listed, _ := f.assets.ListBySubject(ctx, nil, "subject-1", "thumbnail")
		if len(listed) != 3 {
			t.Fatalf("remaining assets = %d", len(listed))
		}
		if n := f.assets.selectedCount("subject-1"); n != 1 {
			t.Fatalf("selected count = %d", n)
		}
		if f.locker.isHeld(red.RegenerateKey("subject-1", "thumbnail")) {
			t.Fatalf("lock should be released after the batch")
		}
	})

	t.Run("quota denial leaves existing assets untouched", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.uc.Submit(ctx, submitParams(2))

		f.quota.decision = &QuotaDecision{Allowed: false, Reason: "limit reached"}
		_, err := f.uc.Regenerate(ctx, submitParams(2))
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("err = %v", err)
		}
		listed, _ := f.assets.ListBySubject(ctx, nil, "subject-1", "thumbnail")
		if len(listed) != 2 {
			t.Fatalf("assets must survive a denied regenerate, got %d", len(listed))
		}
	})

	t.Run("concurrent regenerate for the same subject is rejected", func(t *testing.T) {
		f := newGenFixture(t, newFakeGenerator())
		f.uc.Submit(ctx, submitParams(1))

		key := red.RegenerateKey("subject-1", "thumbnail")
		if _, err := f.locker.TryLock(ctx, key, time.Minute); err != nil {
			t.Fatalf("pre-lock: %v", err)
		}

		_, err := f.uc.Regenerate(ctx, submitParams(1))
		if !errors.Is(err, domain.ErrRegenerateInFlight) {
			t.Fatalf("err = %v", err)
		}
		listed, _ := f.assets.ListBySubject(ctx, nil, "subject-1", "thumbnail")
		if len(listed) != 1 {
			t.Fatalf("rejected regenerate must not delete assets")
		}
	})
}
