//go:build !integration

package web

import (
	"context"

	"github.com/rs/zerolog"

	"cover-studio/internal/domain/model"
	"cover-studio/internal/usecase"
)

type stubGenerationUC struct {
	submitJob  *model.GenerationJob
	submitErr  error
	status     *usecase.JobStatus
	statusErr  error
	regenJob   *model.GenerationJob
	regenErr   error
	lastParams usecase.SubmitParams
}

func (s *stubGenerationUC) Submit(ctx context.Context, p usecase.SubmitParams) (*model.GenerationJob, error) {
	s.lastParams = p
	return s.submitJob, s.submitErr
}

func (s *stubGenerationUC) Status(ctx context.Context, jobID string) (*usecase.JobStatus, error) {
	return s.status, s.statusErr
}

func (s *stubGenerationUC) Regenerate(ctx context.Context, p usecase.SubmitParams) (*model.GenerationJob, error) {
	s.lastParams = p
	return s.regenJob, s.regenErr
}

type stubAssetUC struct {
	refined   *model.Asset
	refineErr error
	selectErr error
	deleteErr error
	listed    []*model.Asset
	listErr   error
}

func (s *stubAssetUC) Refine(ctx context.Context, userID, assetID, instruction string) (*model.Asset, error) {
	return s.refined, s.refineErr
}

func (s *stubAssetUC) Select(ctx context.Context, userID, assetID string) error {
	return s.selectErr
}

func (s *stubAssetUC) Delete(ctx context.Context, userID, assetID string) error {
	return s.deleteErr
}

func (s *stubAssetUC) ListBySubject(ctx context.Context, subjectID, outputClass string) ([]*model.Asset, error) {
	return s.listed, s.listErr
}

type stubQuotaUC struct {
	rows []usecase.ClassUsage
	err  error
}

func (s *stubQuotaUC) Check(ctx context.Context, userID, outputClass string) (*usecase.QuotaDecision, error) {
	return &usecase.QuotaDecision{Allowed: true}, nil
}

func (s *stubQuotaUC) Summary(ctx context.Context, userID string) ([]usecase.ClassUsage, error) {
	return s.rows, s.err
}

func newTestServer(gen *stubGenerationUC, assets *stubAssetUC, quota *stubQuotaUC) *Server {
	log := zerolog.Nop()
	return NewServer(gen, assets, quota, nil, "test-key", &log)
}
