package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/domain/ports/repository"
	"cover-studio/internal/infra/logging"
)

type AssetUseCase interface {
	// Refine derives a new asset from an existing one by applying an edit
	// instruction. Refinements do not consume quota.
	Refine(ctx context.Context, userID, assetID, instruction string) (*model.Asset, error)
	// Select marks the asset as the subject's cover, demoting whichever
	// asset held the flag before.
	Select(ctx context.Context, userID, assetID string) error
	// Delete removes the asset. Deleting the selected asset promotes the
	// most recent remaining one; deleting the last leaves none selected.
	Delete(ctx context.Context, userID, assetID string) error
	ListBySubject(ctx context.Context, subjectID, outputClass string) ([]*model.Asset, error)
}

type assetUseCase struct {
	assets      repository.AssetRepository
	gen         adapter.ImageGenerator
	store       adapter.ObjectStorage
	tm          repository.TransactionManager
	maxAttempts int
	backoffBase time.Duration
	log         *zerolog.Logger
}

func NewAssetUseCase(
	assets repository.AssetRepository,
	gen adapter.ImageGenerator,
	store adapter.ObjectStorage,
	tm repository.TransactionManager,
	maxAttempts int,
	backoffBase time.Duration,
	logger *zerolog.Logger,
) AssetUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	assetLog := logger.With().Str("component", "AssetUC").Logger()
	return &assetUseCase{
		assets:      assets,
		gen:         gen,
		store:       store,
		tm:          tm,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         &assetLog,
	}
}

// findOwned loads the asset and enforces ownership. A foreign asset is
// reported as not found rather than leaking its existence.
func (uc *assetUseCase) findOwned(ctx context.Context, tx repository.Tx, userID, assetID string) (*model.Asset, error) {
	a, err := uc.assets.FindByID(ctx, tx, assetID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (uc *assetUseCase) Refine(ctx context.Context, userID, assetID, instruction string) (*model.Asset, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: empty refinement instruction", domain.ErrInvalidArgument)
	}

	parent, err := uc.findOwned(ctx, nil, userID, assetID)
	if err != nil {
		return nil, err
	}

	base, err := uc.store.Download(ctx, parent.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReferenceUnavailable, err)
	}

	edited, err := retryImageCall(ctx, "edit", uc.maxAttempts, uc.backoffBase, func() ([]byte, error) {
		return uc.gen.Edit(ctx, base, instruction)
	})
	if err != nil {
		return nil, err
	}

	child := parent.NewRefinement()
	up, err := uc.store.Upload(ctx, edited, adapter.UploadParams{
		Key:         assetKey(child),
		ContentType: "image/png",
		Metadata:    map[string]string{"subject_id": child.SubjectID, "parent_asset_id": parent.ID},
	})
	if err != nil {
		return nil, err
	}
	child.StorageRef = up.Ref
	child.URL = up.URL
	child.SecureURL = up.SecureURL
	child.Bytes = up.Bytes
	child.Width = up.Width
	child.Height = up.Height
	child.Format = up.Format

	if err := uc.assets.Save(ctx, nil, child); err != nil {
		return nil, err
	}
	return child, nil
}

func (uc *assetUseCase) Select(ctx context.Context, userID, assetID string) error {
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
		a, err := uc.findOwned(txCtx, tx, userID, assetID)
		if err != nil {
			return err
		}
		if err := uc.assets.ClearSelection(txCtx, tx, a.SubjectID); err != nil {
			return err
		}
		return uc.assets.SetSelected(txCtx, tx, a.ID)
	})
}

func (uc *assetUseCase) Delete(ctx context.Context, userID, assetID string) error {
	a, err := uc.findOwned(ctx, nil, userID, assetID)
	if err != nil {
		return err
	}

	if a.StorageRef != "" {
		if derr := uc.store.Delete(ctx, a.StorageRef); derr != nil {
			// Row removal wins; an orphaned payload is cleanup debt only.
			logging.With(ctx, uc.log).Warn().Err(derr).Str("asset_id", a.ID).Msg("payload delete failed")
		}
	}

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
		if err := uc.assets.Delete(txCtx, tx, a.ID); err != nil {
			return err
		}
		if !a.IsSelected {
			return nil
		}
		latest, err := uc.assets.FindLatestBySubject(txCtx, tx, a.SubjectID)
		if errors.Is(err, domain.ErrNotFound) {
			// Last asset gone; the subject legitimately has no cover.
			return nil
		}
		if err != nil {
			return err
		}
		return uc.assets.SetSelected(txCtx, tx, latest.ID)
	})
}

func (uc *assetUseCase) ListBySubject(ctx context.Context, subjectID, outputClass string) ([]*model.Asset, error) {
	return uc.assets.ListBySubject(ctx, nil, subjectID, outputClass)
}
