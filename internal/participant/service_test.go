package participant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/repository"
)

type mockParticipantRepo struct {
	mock.Mock
}

func (m *mockParticipantRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Participant, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func (m *mockParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockParticipantRepo) ListNotifiable(ctx context.Context) ([]*domain.Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(t *testing.T) *Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client)
}

func TestGetCachesAfterStoreRead(t *testing.T) {
	repo := &mockParticipantRepo{}
	svc := NewService(repo, testCache(t), testLogger())
	ctx := context.Background()

	want := &domain.Participant{TelegramID: 100, Name: "Иван", Organization: "ООО Ломбард"}
	repo.On("FindByTelegramID", mock.Anything, int64(100)).Return(want, nil).Once()

	first, err := svc.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, want.Name, first.Name)

	// Second read served from cache; the repo expectation is Once.
	second, err := svc.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, want.Organization, second.Organization)

	repo.AssertExpectations(t)
}

func TestGetUnregistered(t *testing.T) {
	repo := &mockParticipantRepo{}
	svc := NewService(repo, nil, testLogger())

	repo.On("FindByTelegramID", mock.Anything, int64(200)).Return(nil, repository.ErrParticipantNotFound)

	_, err := svc.Get(context.Background(), 200)
	assert.True(t, errors.Is(err, ErrNotRegistered))
}

func TestIsRegistered(t *testing.T) {
	repo := &mockParticipantRepo{}
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	repo.On("FindByTelegramID", mock.Anything, int64(100)).
		Return(&domain.Participant{TelegramID: 100}, nil)
	repo.On("FindByTelegramID", mock.Anything, int64(200)).
		Return(nil, repository.ErrParticipantNotFound)

	registered, err := svc.IsRegistered(ctx, 100)
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = svc.IsRegistered(ctx, 200)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestRegisterPersistsAndPrimesCache(t *testing.T) {
	repo := &mockParticipantRepo{}
	svc := NewService(repo, testCache(t), testLogger())
	ctx := context.Background()

	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.TelegramID == 100 && p.NotifyOptIn && p.Name == "Иван Петров"
	})).Return(nil)

	p, err := svc.Register(ctx, 100, "Иван Петров", "ООО Ломбард", "Ломбард", "Не указано")
	require.NoError(t, err)
	assert.False(t, p.RegisteredAt.IsZero())

	// A follow-up read never reaches the repo.
	got, err := svc.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "ООО Ломбард", got.Organization)

	repo.AssertNotCalled(t, "FindByTelegramID", mock.Anything, mock.Anything)
}

func TestCacheMissReturnsNil(t *testing.T) {
	cache := testCache(t)

	p, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}
