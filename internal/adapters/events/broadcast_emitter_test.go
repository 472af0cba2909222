package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
)

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.ProgressEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ProgressEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.ProgressEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return m.Called(ctx, channel).Error(0)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

type stubEmitter struct {
	calls    []string
	progErr  error
	finalErr error
}

func (s *stubEmitter) Progress(ctx context.Context, step string, progress int, message string, data interface{}) error {
	s.calls = append(s.calls, step)
	return s.progErr
}

func (s *stubEmitter) Complete(ctx context.Context, data interface{}) error {
	s.calls = append(s.calls, "complete")
	return s.finalErr
}

func (s *stubEmitter) Fail(ctx context.Context, message string) error {
	s.calls = append(s.calls, "fail")
	return s.finalErr
}

func TestBroadcastEmitter_PublishesAfterInner(t *testing.T) {
	inner := &stubEmitter{}
	bus := new(MockEventBus)
	bus.On("Publish", mock.Anything, "improvement:job:job-1", mock.MatchedBy(func(e *entities.ProgressEvent) bool {
		return e.Type == entities.ProgressEventProgress && *e.Progress == 30 && e.JobID == "job-1"
	})).Return(nil).Once()
	bus.On("Publish", mock.Anything, "improvement:job:job-1", mock.MatchedBy(func(e *entities.ProgressEvent) bool {
		return e.Type == entities.ProgressEventComplete
	})).Return(nil).Once()

	emitter := NewBroadcastEmitter(inner, bus, "job-1")
	require.NoError(t, emitter.Progress(context.Background(), "analyzing", 30, "Analiz ediliyor", nil))
	require.NoError(t, emitter.Complete(context.Background(), map[string]int{"score": 80}))

	assert.Equal(t, []string{"analyzing", "complete"}, inner.calls)
	bus.AssertExpectations(t)
}

func TestBroadcastEmitter_PublishFailureIsSwallowed(t *testing.T) {
	inner := &stubEmitter{}
	bus := new(MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	emitter := NewBroadcastEmitter(inner, bus, "job-1")
	assert.NoError(t, emitter.Fail(context.Background(), "Sağlayıcı hatası"))
}

func TestBroadcastEmitter_InnerProgressErrorSkipsPublish(t *testing.T) {
	inner := &stubEmitter{progErr: providers.ErrClientGone}
	bus := new(MockEventBus)

	emitter := NewBroadcastEmitter(inner, bus, "job-1")
	err := emitter.Progress(context.Background(), "fetching", 10, "İçerik alınıyor", nil)
	assert.ErrorIs(t, err, providers.ErrClientGone)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestBroadcastEmitter_TerminalReachesFollowersWhenRequesterLeft(t *testing.T) {
	inner := &stubEmitter{finalErr: providers.ErrClientGone}
	bus := new(MockEventBus)
	bus.On("Publish", mock.Anything, "improvement:job:job-1", mock.MatchedBy(func(e *entities.ProgressEvent) bool {
		return e.Type == entities.ProgressEventError && e.Error == "Bağlantı kesildi"
	})).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBroadcastEmitter(inner, bus, "job-1").Fail(ctx, "Bağlantı kesildi")
	assert.ErrorIs(t, err, providers.ErrClientGone)
	bus.AssertExpectations(t)
}

func TestBroadcastEmitter_ClosedStreamIsNotRebroadcast(t *testing.T) {
	inner := &stubEmitter{finalErr: providers.ErrStreamClosed}
	bus := new(MockEventBus)

	err := NewBroadcastEmitter(inner, bus, "job-1").Complete(context.Background(), nil)
	assert.ErrorIs(t, err, providers.ErrStreamClosed)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestBroadcastEmitter_NilBus(t *testing.T) {
	inner := &stubEmitter{}
	emitter := NewBroadcastEmitter(inner, nil, "job-1")
	assert.NoError(t, emitter.Progress(context.Background(), "fetching", 10, "İçerik alınıyor", nil))
}
