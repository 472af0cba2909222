package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karasuemlak/backend/internal/adapters/providers/improver"
	"github.com/karasuemlak/backend/internal/application/quality"
	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// memoryJobRepository keeps copies of every persisted job state
type memoryJobRepository struct {
	mu        sync.Mutex
	jobs      map[string]entities.ImprovementJob
	history   []entities.ImprovementJob
	updateErr error
	// completeErr fails the first write of a completed job
	completeErr error
}

func newMemoryJobRepository() *memoryJobRepository {
	return &memoryJobRepository{jobs: make(map[string]entities.ImprovementJob)}
}

func (r *memoryJobRepository) Create(ctx context.Context, job *entities.ImprovementJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	r.history = append(r.history, *job)
	return nil
}

func (r *memoryJobRepository) Update(ctx context.Context, job *entities.ImprovementJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil && !job.IsTerminal() {
		return r.updateErr
	}
	if r.completeErr != nil && job.Status == entities.JobStatusCompleted {
		err := r.completeErr
		r.completeErr = nil
		return err
	}
	if _, ok := r.jobs[job.ID]; !ok {
		return apperrors.NewNotFoundError("job not found")
	}
	r.jobs[job.ID] = *job
	r.history = append(r.history, *job)
	return nil
}

func (r *memoryJobRepository) GetByID(ctx context.Context, id string) (*entities.ImprovementJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("job not found")
	}
	return &job, nil
}

func (r *memoryJobRepository) ListByContent(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ImprovementJob
	for _, job := range r.jobs {
		if job.ContentType == contentType && job.ContentID == contentID {
			j := job
			out = append(out, &j)
		}
	}
	return out, nil
}

func (r *memoryJobRepository) latest(id string) entities.ImprovementJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

type recordedEvent struct {
	kind      string
	step      string
	progress  int
	message   string
	data      interface{}
	persisted entities.ImprovementJob
}

// recordingEmitter captures events together with the job state that was
// persisted when each one was emitted
type recordingEmitter struct {
	repo       *memoryJobRepository
	events     []recordedEvent
	onProgress func(step string)
	closed     bool
}

func (e *recordingEmitter) snapshot() entities.ImprovementJob {
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	if len(e.repo.history) == 0 {
		return entities.ImprovementJob{}
	}
	return e.repo.history[len(e.repo.history)-1]
}

func (e *recordingEmitter) Progress(ctx context.Context, step string, progress int, message string, data interface{}) error {
	if e.closed {
		return providers.ErrStreamClosed
	}
	e.events = append(e.events, recordedEvent{kind: "progress", step: step, progress: progress, message: message, data: data, persisted: e.snapshot()})
	if e.onProgress != nil {
		e.onProgress(step)
	}
	return nil
}

func (e *recordingEmitter) Complete(ctx context.Context, data interface{}) error {
	if e.closed {
		return providers.ErrStreamClosed
	}
	e.closed = true
	e.events = append(e.events, recordedEvent{kind: "complete", progress: 100, data: data, persisted: e.snapshot()})
	return nil
}

func (e *recordingEmitter) Fail(ctx context.Context, message string) error {
	if e.closed {
		return providers.ErrStreamClosed
	}
	e.closed = true
	e.events = append(e.events, recordedEvent{kind: "error", message: message, persisted: e.snapshot()})
	return nil
}

func (e *recordingEmitter) terminals() []recordedEvent {
	var out []recordedEvent
	for _, ev := range e.events {
		if ev.kind != "progress" {
			out = append(out, ev)
		}
	}
	return out
}

type MockContentImprover struct {
	mock.Mock
}

func (m *MockContentImprover) Improve(ctx context.Context, req entities.ImproveRequest) (*entities.ImprovementResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ImprovementResult), args.Error(1)
}

type serviceFixture struct {
	service  *ContentImprovementService
	jobs     *memoryJobRepository
	content  *MockContentRepository
	emitter  *recordingEmitter
	analyzer *quality.Analyzer
}

func newServiceFixture(t *testing.T, contentImprover providers.ContentImprover) *serviceFixture {
	t.Helper()
	jobs := newMemoryJobRepository()
	content := new(MockContentRepository)
	analyzer := quality.NewAnalyzer(quality.DefaultRules())
	if contentImprover == nil {
		contentImprover = improver.NewImprover(improver.NewMockRewriter(), analyzer)
	}

	svc := NewContentImprovementService(jobs, content, contentImprover, analyzer, nil, time.Second)
	svc.newID = func() string { return "job-1" }

	return &serviceFixture{
		service:  svc,
		jobs:     jobs,
		content:  content,
		emitter:  &recordingEmitter{repo: jobs},
		analyzer: analyzer,
	}
}

func shortListing() *entities.ContentEntity {
	return &entities.ContentEntity{
		Type:  entities.ContentTypeListing,
		ID:    "lst-1",
		Title: "Test İlan",
		Field: "description",
		Value: "Kısa açıklama.",
	}
}

func improveRequest() ImproveJobRequest {
	return ImproveJobRequest{Ref: listingRef, RequestedBy: "admin-1"}
}

func TestContentImprovementService_RunEndToEnd(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	job, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.NoError(t, err)

	// monotonic progress ending at 100
	var steps []string
	last := -1
	for _, ev := range f.emitter.events {
		assert.GreaterOrEqual(t, ev.progress, last)
		last = ev.progress
		steps = append(steps, ev.step)
	}
	assert.Equal(t, 100, last)
	assert.Equal(t, []string{"initializing", "fetching", "analyzing", "improving", "saving", ""}, steps)

	terminals := f.emitter.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, "complete", terminals[0].kind)
	assert.Equal(t, "complete", f.emitter.events[len(f.emitter.events)-1].kind)

	comparison, ok := terminals[0].data.(*entities.ImprovementComparison)
	require.True(t, ok)
	assert.Equal(t, "Kısa açıklama.", comparison.Original.Content)
	assert.Greater(t, len(comparison.Improved.Content), len(comparison.Original.Content))
	assert.Less(t, comparison.Original.Score, 100)
	assert.Greater(t, comparison.Improved.Score, comparison.Original.Score)
	assert.Equal(t, comparison.Improved.Score-comparison.Original.Score, comparison.Improvement.ScoreIncrease)
	assert.Greater(t, comparison.Improvement.WordCountIncrease, 0)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ImprovedContent)
	require.NotNil(t, stored.QualityAnalysis)
	assert.Nil(t, stored.AppliedAt)
	assert.Equal(t, job.ID, stored.ID)

	f.content.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything)
}

func TestContentImprovementService_PersistsBeforeEmitting(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.NoError(t, err)

	for _, ev := range f.emitter.events {
		if ev.kind == "progress" {
			assert.Equal(t, ev.step, string(ev.persisted.Step), "job row lags behind the %s event", ev.step)
			assert.Equal(t, ev.progress, ev.persisted.Progress)
		} else {
			assert.Equal(t, entities.JobStatusCompleted, ev.persisted.Status)
		}
	}
}

func TestContentImprovementService_ProviderFailure(t *testing.T) {
	contentImprover := new(MockContentImprover)
	contentImprover.On("Improve", mock.Anything, mock.Anything).Return(nil, errors.New("upstream returned 500"))

	f := newServiceFixture(t, contentImprover)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	job, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeExternal, apperrors.TypeOf(err))
	require.NotNil(t, job)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, msgProviderFailed, *stored.ErrorMessage)
	require.NotNil(t, stored.ErrorKind)
	assert.Equal(t, "EXTERNAL", *stored.ErrorKind)
	assert.Nil(t, stored.ImprovedContent)
	assert.NotNil(t, stored.QualityAnalysis)

	terminals := f.emitter.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, "error", terminals[0].kind)
	assert.Equal(t, msgProviderFailed, terminals[0].message)
	assert.Equal(t, entities.JobStatusFailed, terminals[0].persisted.Status, "failure is persisted before the error event")
	assert.Equal(t, "error", f.emitter.events[len(f.emitter.events)-1].kind)
}

func TestContentImprovementService_ProviderTimeout(t *testing.T) {
	contentImprover := new(MockContentImprover)
	contentImprover.On("Improve", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	f := newServiceFixture(t, contentImprover)
	f.service.providerTimeout = 20 * time.Millisecond
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.Error(t, err)

	terminals := f.emitter.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, "error", terminals[0].kind)
	assert.Equal(t, msgProviderTimeout, terminals[0].message)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	assert.Nil(t, stored.ImprovedContent)
}

func TestContentImprovementService_ProviderUnauthorized(t *testing.T) {
	contentImprover := new(MockContentImprover)
	contentImprover.On("Improve", mock.Anything, mock.Anything).
		Return(nil, errors.Join(errors.New("openai rewrite failed"), providers.ErrImproverUnauthorized))

	f := newServiceFixture(t, contentImprover)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	assert.Equal(t, msgProviderAuth, apperrors.MessageOf(err))
}

func TestContentImprovementService_FetchFailures(t *testing.T) {
	tests := []struct {
		name     string
		entity   *entities.ContentEntity
		err      error
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name:     "empty field",
			entity:   &entities.ContentEntity{ID: "lst-1", Title: "Test İlan", Value: "   "},
			wantType: apperrors.ErrorTypeValidation,
			wantMsg:  msgEmptyContent,
		},
		{
			name:     "missing entity",
			err:      apperrors.NewNotFoundError("ilan lst-1 bulunamadı"),
			wantType: apperrors.ErrorTypeNotFound,
			wantMsg:  "ilan lst-1 bulunamadı",
		},
		{
			name:     "store stays unavailable",
			err:      apperrors.NewUnavailableError(storeUnavailableMessage, nil),
			wantType: apperrors.ErrorTypeUnavailable,
			wantMsg:  storeUnavailableMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentImprover := new(MockContentImprover)
			f := newServiceFixture(t, contentImprover)
			if tt.err != nil {
				f.content.On("Get", mock.Anything, listingRef).Return(nil, tt.err)
			} else {
				f.content.On("Get", mock.Anything, listingRef).Return(tt.entity, nil)
			}

			_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))

			stored := f.jobs.latest("job-1")
			assert.Equal(t, entities.JobStatusFailed, stored.Status)
			require.NotNil(t, stored.ErrorKind)
			assert.Equal(t, string(tt.wantType), *stored.ErrorKind)

			terminals := f.emitter.terminals()
			require.Len(t, terminals, 1)
			assert.Equal(t, tt.wantMsg, terminals[0].message)
			contentImprover.AssertNotCalled(t, "Improve", mock.Anything, mock.Anything)
		})
	}
}

func TestContentImprovementService_ClientDisconnect(t *testing.T) {
	contentImprover := new(MockContentImprover)
	f := newServiceFixture(t, contentImprover)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.emitter.onProgress = func(step string) {
		if step == string(entities.JobStepFetching) {
			cancel()
		}
	}

	_, err := f.service.Run(ctx, improveRequest(), f.emitter)
	require.Error(t, err)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, msgDisconnected, *stored.ErrorMessage)
	assert.Len(t, f.emitter.terminals(), 1)
	contentImprover.AssertNotCalled(t, "Improve", mock.Anything, mock.Anything)
}

func TestContentImprovementService_JobStoreFailureStillTerminates(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.jobs.updateErr = apperrors.NewUnavailableError("job store down", nil)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.Error(t, err)

	terminals := f.emitter.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, "error", terminals[0].kind)
	assert.Equal(t, entities.JobStatusFailed, f.jobs.latest("job-1").Status)
}

func TestContentImprovementService_CompletionWriteFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.jobs.completeErr = errors.New("connection reset by peer")
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

	job, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
	require.Error(t, err)
	require.NotNil(t, job)
	assert.Equal(t, entities.JobStatusFailed, job.Status)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, msgUnexpectedFailed, *stored.ErrorMessage)
	assert.Nil(t, stored.ImprovedContent)
	assert.Nil(t, stored.AppliedAt)

	terminals := f.emitter.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, "error", terminals[0].kind)
	assert.Equal(t, entities.JobStatusFailed, terminals[0].persisted.Status)
}

func TestContentImprovementService_DisconnectDuringStoreRetry(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.content.On("Get", mock.Anything, listingRef).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, fmt.Errorf("retry aborted after 1 attempts: %w (last error: %v)", context.Canceled, "store unavailable"))

	_, err := f.service.Run(ctx, improveRequest(), f.emitter)
	require.Error(t, err)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, msgDisconnected, *stored.ErrorMessage)
	require.NotNil(t, stored.ErrorKind)
	assert.Equal(t, "INTERNAL", *stored.ErrorKind)
}

func TestContentImprovementService_RejectsBeforeCreatingJob(t *testing.T) {
	t.Run("invalid field", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		req := improveRequest()
		req.Ref.Field = "price"

		job, err := f.service.Run(context.Background(), req, f.emitter)
		assert.Nil(t, job)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		assert.Empty(t, f.emitter.events)
		assert.Empty(t, f.jobs.history)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.service.limiter = NewRateLimiter(nil, 1, time.Hour)
		f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)

		_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
		require.NoError(t, err)

		second := &recordingEmitter{repo: f.jobs}
		_, err = f.service.Run(context.Background(), improveRequest(), second)
		assert.Equal(t, apperrors.ErrorTypeRateLimited, apperrors.TypeOf(err))
		assert.Empty(t, second.events)
	})
}

func TestContentImprovementService_RunWithApply(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)
	f.content.On("UpdateField", mock.Anything, listingRef, mock.MatchedBy(func(p entities.ContentPatch) bool {
		return len(p.Value) > len("Kısa açıklama.") && p.QualityScore != nil
	})).Return(nil).Once()

	req := improveRequest()
	req.Apply = true
	_, err := f.service.Run(context.Background(), req, f.emitter)
	require.NoError(t, err)

	stored := f.jobs.latest("job-1")
	assert.Equal(t, entities.JobStatusCompleted, stored.Status)
	assert.NotNil(t, stored.AppliedAt)
	f.content.AssertExpectations(t)
}

func TestContentImprovementService_ApplyImprovement(t *testing.T) {
	t.Run("writes back a completed job", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)
		_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
		require.NoError(t, err)

		stored := f.jobs.latest("job-1")
		f.content.On("UpdateField", mock.Anything, listingRef, entities.ContentPatch{
			Value:        *stored.ImprovedContent,
			QualityScore: &stored.ImprovementResult.Score.After,
		}).Return(nil).Once()

		job, err := f.service.ApplyImprovement(context.Background(), "job-1")
		require.NoError(t, err)
		assert.NotNil(t, job.AppliedAt)
		assert.NotNil(t, f.jobs.latest("job-1").AppliedAt)
		f.content.AssertExpectations(t)
	})

	t.Run("unavailable store surfaces unavailable", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)
		_, err := f.service.Run(context.Background(), improveRequest(), f.emitter)
		require.NoError(t, err)

		f.content.On("UpdateField", mock.Anything, listingRef, mock.Anything).
			Return(apperrors.NewUnavailableError(storeUnavailableMessage, nil))

		_, err = f.service.ApplyImprovement(context.Background(), "job-1")
		assert.Equal(t, apperrors.ErrorTypeUnavailable, apperrors.TypeOf(err))
		assert.Nil(t, f.jobs.latest("job-1").AppliedAt)
	})

	t.Run("failed job conflicts", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		job := entities.NewImprovementJob("job-2", listingRef, "admin-1", time.Now())
		require.NoError(t, job.Fail(apperrors.ErrorTypeExternal, msgProviderFailed, time.Now()))
		require.NoError(t, f.jobs.Create(context.Background(), job))

		_, err := f.service.ApplyImprovement(context.Background(), "job-2")
		assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.TypeOf(err))
		f.content.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		_, err := f.service.ApplyImprovement(context.Background(), "missing")
		assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))
	})
}

func TestContentImprovementService_UpdateField(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.content.On("Get", mock.Anything, listingRef).Return(shortListing(), nil)
	f.content.On("UpdateField", mock.Anything, listingRef, mock.MatchedBy(func(p entities.ContentPatch) bool {
		return p.Value == "Yeni açıklama." && p.QualityScore != nil
	})).Return(nil)

	analysis, err := f.service.UpdateField(context.Background(), listingRef, "Yeni açıklama.")
	require.NoError(t, err)
	assert.Equal(t, entities.QualityAnalysisKind, analysis.Kind)

	_, err = f.service.UpdateField(context.Background(), listingRef, "  ")
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestContentImprovementService_ListJobs(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.ListJobs(context.Background(), "villa", "lst-1", 10)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = f.service.ListJobs(context.Background(), entities.ContentTypeListing, "", 10)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	jobs, err := f.service.ListJobs(context.Background(), entities.ContentTypeListing, "lst-1", 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
