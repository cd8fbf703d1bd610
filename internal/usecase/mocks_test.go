//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- transaction manager ---

// memTxManager simply runs the function with a nil handle; the in-memory
// repos ignore transactions.
type memTxManager struct{}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- runner ---

// syncRunner executes submitted tasks inline so tests observe terminal
// job state as soon as Submit returns.
type syncRunner struct {
	submitErr error
}

func (r *syncRunner) Submit(task func(ctx context.Context) error) error {
	if r.submitErr != nil {
		return r.submitErr
	}
	return task(context.Background())
}

// --- job repo ---

type memJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.GenerationJob
	saveErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.GenerationJob)}
}

func (r *memJobRepo) Save(ctx context.Context, _ repository.Tx, job *model.GenerationJob) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.GeneratedAssetIDs = append([]string(nil), job.GeneratedAssetIDs...)
	cp.Errors = append([]model.VariantError(nil), job.Errors...)
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) FailStaleProcessing(ctx context.Context, _ repository.Tx, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.Status == model.GenerationJobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = model.GenerationJobStatusFailed
			n++
		}
	}
	return n, nil
}

// --- asset repo ---

type memAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*model.Asset
	seq    int
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{assets: make(map[string]*model.Asset)}
}

func (r *memAssetRepo) Save(ctx context.Context, _ repository.Tx, a *model.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.seq++
	r.assets[a.ID] = &cp
	return nil
}

func (r *memAssetRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAssetRepo) ListBySubject(ctx context.Context, _ repository.Tx, subjectID, outputClass string) ([]*model.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Asset
	for _, a := range r.assets {
		if a.SubjectID == subjectID && a.OutputClass == outputClass {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAssetRepo) HasSelected(ctx context.Context, _ repository.Tx, subjectID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.SubjectID == subjectID && a.IsSelected {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAssetRepo) ClearSelection(ctx context.Context, _ repository.Tx, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.SubjectID == subjectID {
			a.IsSelected = false
		}
	}
	return nil
}

func (r *memAssetRepo) SetSelected(ctx context.Context, _ repository.Tx, assetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsSelected = true
	return nil
}

func (r *memAssetRepo) FindLatestBySubject(ctx context.Context, _ repository.Tx, subjectID string) (*model.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Asset
	for _, a := range r.assets {
		if a.SubjectID != subjectID {
			continue
		}
		if latest == nil ||
			a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID > latest.ID) {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memAssetRepo) Delete(ctx context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.assets, id)
	return nil
}

func (r *memAssetRepo) selectedCount(subjectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.assets {
		if a.SubjectID == subjectID && a.IsSelected {
			n++
		}
	}
	return n
}

// --- usage repo ---

type usageKey struct {
	userID      string
	outputClass string
	periodStart time.Time
}

type memUsageRepo struct {
	mu      sync.Mutex
	rows    map[usageKey]*model.UsageTotals
	sumErr  error
	incErr  error
	incCall int
}

func newMemUsageRepo() *memUsageRepo {
	return &memUsageRepo{rows: make(map[usageKey]*model.UsageTotals)}
}

func (r *memUsageRepo) Increment(ctx context.Context, _ repository.Tx, userID, outputClass string, periodStart time.Time, iterationDelta, assetDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incCall++
	if r.incErr != nil {
		return r.incErr
	}
	k := usageKey{userID, outputClass, periodStart}
	row, ok := r.rows[k]
	if !ok {
		row = &model.UsageTotals{}
		r.rows[k] = row
	}
	row.IterationsUsed += iterationDelta
	row.AssetsGenerated += assetDelta
	return nil
}

func (r *memUsageRepo) SumSince(ctx context.Context, _ repository.Tx, userID, outputClass string, since time.Time) (model.UsageTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sumErr != nil {
		return model.UsageTotals{}, r.sumErr
	}
	var total model.UsageTotals
	for k, row := range r.rows {
		if k.userID != userID || k.outputClass != outputClass {
			continue
		}
		if !since.IsZero() && k.periodStart.Before(since) {
			continue
		}
		total.IterationsUsed += row.IterationsUsed
		total.AssetsGenerated += row.AssetsGenerated
	}
	return total, nil
}

func (r *memUsageRepo) ListByUser(ctx context.Context, _ repository.Tx, userID string) ([]*model.UsagePeriodRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UsagePeriodRecord
	for k, row := range r.rows {
		if k.userID != userID {
			continue
		}
		out = append(out, &model.UsagePeriodRecord{
			UserID:          k.userID,
			OutputClass:     k.outputClass,
			PeriodStart:     k.periodStart,
			IterationsUsed:  row.IterationsUsed,
			AssetsGenerated: row.AssetsGenerated,
		})
	}
	return out, nil
}

// --- tier limit repo ---

type tierKey struct {
	tier        model.SubscriptionTier
	outputClass string
}

type memTierRepo struct {
	mu      sync.Mutex
	limits  map[tierKey]*model.TierLimit
	findErr error
}

func newMemTierRepo() *memTierRepo {
	return &memTierRepo{limits: make(map[tierKey]*model.TierLimit)}
}

func (r *memTierRepo) FindByTierAndClass(ctx context.Context, _ repository.Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	l, ok := r.limits[tierKey{tier, outputClass}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memTierRepo) ListForTier(ctx context.Context, _ repository.Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.TierLimit
	for k, l := range r.limits {
		if k.tier == tier {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTierRepo) Save(ctx context.Context, _ repository.Tx, limit *model.TierLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *limit
	r.limits[tierKey{limit.Tier, limit.OutputClass}] = &cp
	return nil
}

// --- admin grant repo ---

type memGrantRepo struct {
	mu      sync.Mutex
	grants  map[string]*model.AdminGrant // by user id
	findErr error
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{grants: make(map[string]*model.AdminGrant)}
}

func (r *memGrantRepo) FindActiveByUser(ctx context.Context, _ repository.Tx, userID string, now time.Time) (*model.AdminGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	g, ok := r.grants[userID]
	if !ok || !g.ActiveAt(now) {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memGrantRepo) Save(ctx context.Context, _ repository.Tx, grant *model.AdminGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *grant
	r.grants[grant.UserID] = &cp
	return nil
}

// --- user repo ---

type memUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	findErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Save(ctx context.Context, _ repository.Tx, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// --- generator ---

// fakeGenerator pops scripted outcomes per call. Empty scripts succeed
// with a canned payload.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []error // nil entry = success
	calls     int
	editCalls int
	editErr   error
	payload   []byte
}

func newFakeGenerator(responses ...error) *fakeGenerator {
	return &fakeGenerator{responses: responses, payload: []byte("png-bytes")}
}

func (g *fakeGenerator) next() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.responses) == 0 {
		return nil
	}
	err := g.responses[0]
	g.responses = g.responses[1:]
	return err
}

func (g *fakeGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) ([]byte, error) {
	if err := g.next(); err != nil {
		return nil, err
	}
	return g.payload, nil
}

func (g *fakeGenerator) Edit(ctx context.Context, base []byte, instruction string) ([]byte, error) {
	g.mu.Lock()
	g.editCalls++
	err := g.editErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return append([]byte("edited:"), base...), nil
}

// --- storage ---

type fakeStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploads     int
	deletes     int
	uploadErr   error
	uploadErrs  []error // scripted per-call results, nil entries succeed
	downloadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(ctx context.Context, data []byte, params adapter.UploadParams) (*adapter.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s.uploads++
	s.objects[params.Key] = append([]byte(nil), data...)
	url := "https://cdn.test/" + params.Key
	return &adapter.Upload{Ref: params.Key, URL: url, SecureURL: url, Bytes: int64(len(data)), Format: "png"}, nil
}

func (s *fakeStorage) Download(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.objects[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *fakeStorage) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.objects, ref)
	return nil
}

// --- locker ---

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrRegenerateInFlight
	}
	l.held[key] = "token-" + key
	return l.held[key], nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// --- quota stub for generation tests ---

type stubQuota struct {
	decision *QuotaDecision
	calls    int
}

func (q *stubQuota) Check(ctx context.Context, userID, outputClass string) (*QuotaDecision, error) {
	q.calls++
	if q.decision != nil {
		return q.decision, nil
	}
	return &QuotaDecision{Allowed: true, Source: "tier"}, nil
}

func (q *stubQuota) Summary(ctx context.Context, userID string) ([]ClassUsage, error) {
	return nil, nil
}
