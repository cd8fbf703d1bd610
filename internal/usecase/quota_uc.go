package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
	"cover-studio/internal/infra/metrics"
)

// QuotaDecision is the outcome of one admission check.
type QuotaDecision struct {
	Allowed         bool
	Reason          string
	Unlimited       bool
	Used            int
	Limit           int
	Remaining       int
	RequiresUpgrade bool
	Source          string // "tier" | "grant" | "unlimited" | "fail_open"
}

// ClassUsage is one row of the caller-facing usage summary.
type ClassUsage struct {
	OutputClass string
	Used        int
	Limit       int
	Remaining   int
	Unlimited   bool
}

type QuotaUseCase interface {
	// Check decides admission for one generation batch. It never returns
	// a denial because of infrastructure trouble: resolution errors fail
	// open with a warning reason.
	Check(ctx context.Context, userID, outputClass string) (*QuotaDecision, error)
	Summary(ctx context.Context, userID string) ([]ClassUsage, error)
}

type quotaUseCase struct {
	users          repository.UserRepository
	grants         repository.AdminGrantRepository
	tiers          repository.TierLimitRepository
	usage          repository.UsageRepository
	grantAllowance int
	now            func() time.Time
	log            *zerolog.Logger
}

func NewQuotaUseCase(
	users repository.UserRepository,
	grants repository.AdminGrantRepository,
	tiers repository.TierLimitRepository,
	usage repository.UsageRepository,
	grantAllowance int,
	logger *zerolog.Logger,
) QuotaUseCase {
	quotaLog := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUseCase{
		users:          users,
		grants:         grants,
		tiers:          tiers,
		usage:          usage,
		grantAllowance: grantAllowance,
		now:            time.Now,
		log:            &quotaLog,
	}
}

func (uc *quotaUseCase) Check(ctx context.Context, userID, outputClass string) (*QuotaDecision, error) {
	now := uc.now()

	grant, err := uc.grants.FindActiveByUser(ctx, nil, userID, now)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return uc.failOpen("grant lookup failed", err), nil
	}
	if err == nil {
		return uc.checkGrant(ctx, userID, outputClass, grant, now), nil
	}

	user, err := uc.users.FindByID(ctx, nil, userID)
	if err != nil {
		return uc.failOpen("user lookup failed", err), nil
	}

	limit, err := uc.tiers.FindByTierAndClass(ctx, nil, user.Tier, outputClass)
	if err != nil {
		return uc.failOpen("tier limit lookup failed", err), nil
	}

	if limit.IsUnlimited {
		metrics.IncQuotaDecision("allowed", "unlimited")
		return &QuotaDecision{Allowed: true, Unlimited: true, Source: "unlimited"}, nil
	}

	// Lifetime sum unless the tier resets monthly.
	var since time.Time
	if limit.ResetsMonthly {
		since = model.PeriodStart(now)
	}
	used, err := uc.usage.SumSince(ctx, nil, userID, outputClass, since)
	if err != nil {
		return uc.failOpen("usage lookup failed", err), nil
	}

	d := &QuotaDecision{
		Used:   used.IterationsUsed,
		Limit:  limit.MaxIterations,
		Source: "tier",
	}
	if used.IterationsUsed < limit.MaxIterations {
		d.Allowed = true
		d.Remaining = limit.MaxIterations - used.IterationsUsed
		metrics.IncQuotaDecision("allowed", "tier")
		return d, nil
	}
	d.Reason = fmt.Sprintf(
		"You've used all %d cover generations on your %s plan for this period. Upgrade your plan to keep generating.",
		limit.MaxIterations, user.Tier)
	d.RequiresUpgrade = true
	metrics.IncQuotaDecision("denied", "tier")
	return d, nil
}

// checkGrant applies an active administrative grant: fixed allowance,
// always a monthly window, subscription tier ignored.
func (uc *quotaUseCase) checkGrant(ctx context.Context, userID, outputClass string, grant *model.AdminGrant, now time.Time) *QuotaDecision {
	allowance := grant.Allowance
	if allowance <= 0 {
		allowance = uc.grantAllowance
	}

	used, err := uc.usage.SumSince(ctx, nil, userID, outputClass, model.PeriodStart(now))
	if err != nil {
		return uc.failOpen("usage lookup failed", err)
	}

	d := &QuotaDecision{
		Used:   used.IterationsUsed,
		Limit:  allowance,
		Source: "grant",
	}
	if used.IterationsUsed < allowance {
		d.Allowed = true
		d.Remaining = allowance - used.IterationsUsed
		metrics.IncQuotaDecision("allowed", "grant")
		return d
	}
	// Grants are hand-issued; an upgrade button would be the wrong hint.
	d.Reason = "Your granted cover allowance is used up for this month. Contact support if you need more."
	d.RequiresUpgrade = false
	metrics.IncQuotaDecision("denied", "grant")
	return d
}

func (uc *quotaUseCase) failOpen(what string, err error) *QuotaDecision {
	uc.log.Warn().Err(err).Str("step", what).Msg("quota resolution failed, admitting request")
	metrics.IncQuotaDecision("fail_open", "tier")
	return &QuotaDecision{
		Allowed: true,
		Reason:  "quota could not be verified, request admitted: " + what,
		Source:  "fail_open",
	}
}

func (uc *quotaUseCase) Summary(ctx context.Context, userID string) ([]ClassUsage, error) {
	now := uc.now()

	user, err := uc.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	limits, err := uc.tiers.ListForTier(ctx, nil, user.Tier)
	if err != nil {
		return nil, err
	}

	grant, gerr := uc.grants.FindActiveByUser(ctx, nil, userID, now)
	if gerr != nil && !errors.Is(gerr, domain.ErrNotFound) {
		return nil, gerr
	}

	out := make([]ClassUsage, 0, len(limits))
	for _, limit := range limits {
		row := ClassUsage{OutputClass: limit.OutputClass}

		var since time.Time
		switch {
		case gerr == nil:
			allowance := grant.Allowance
			if allowance <= 0 {
				allowance = uc.grantAllowance
			}
			row.Limit = allowance
			since = model.PeriodStart(now)
		case limit.IsUnlimited:
			row.Unlimited = true
		default:
			row.Limit = limit.MaxIterations
			if limit.ResetsMonthly {
				since = model.PeriodStart(now)
			}
		}

		used, err := uc.usage.SumSince(ctx, nil, userID, limit.OutputClass, since)
		if err != nil {
			return nil, err
		}
		row.Used = used.IterationsUsed
		if !row.Unlimited {
			row.Remaining = row.Limit - row.Used
			if row.Remaining < 0 {
				row.Remaining = 0
			}
		}
		out = append(out, row)
	}
	return out, nil
}
