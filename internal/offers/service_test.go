package offers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/metals-desk/quotes-bot/internal/domain"
	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
)

type mockOfferRepo struct {
	mock.Mock
}

func (m *mockOfferRepo) Create(ctx context.Context, offer *domain.Offer) error {
	return m.Called(ctx, offer).Error(0)
}

func (m *mockOfferRepo) CountForDay(ctx context.Context, telegramID int64, commodity domain.Commodity, day time.Time) (int, error) {
	args := m.Called(ctx, telegramID, commodity, day)
	return args.Int(0), args.Error(1)
}

type recordingGroup struct {
	texts []string
	err   error
}

func (g *recordingGroup) NotifyGroup(text string) error {
	if g.err != nil {
		return g.err
	}
	g.texts = append(g.texts, text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offerParticipant() *domain.Participant {
	return &domain.Participant{
		TelegramID:   100,
		Name:         "Иван Петров",
		Organization: "ООО Ломбард",
		OrgType:      "Ломбард",
		Contacts:     "+7 900 000-00-00",
	}
}

func TestSubmitPersistsAndNotifiesGroup(t *testing.T) {
	repo := &mockOfferRepo{}
	group := &recordingGroup{}
	svc := NewService(repo, nil, group, time.UTC, 2, testLogger())

	repo.On("CountForDay", mock.Anything, int64(100), domain.CommodityGold, mock.Anything).Return(0, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Offer) bool {
		return o.TelegramID == 100 &&
			o.Commodity == domain.CommodityGold &&
			o.QuantityKg == 12.5 &&
			o.QuotePct == 84
	})).Return(nil)

	err := svc.Submit(context.Background(), offerParticipant(), domain.CommodityGold, 12.5, 84)
	require.NoError(t, err)

	repo.AssertExpectations(t)
	require.Len(t, group.texts, 1)
	assert.Contains(t, group.texts[0], "ООО Ломбард")
	assert.Contains(t, group.texts[0], "Золото")
}

func TestSubmitRejectsWhenDailyCapReached(t *testing.T) {
	repo := &mockOfferRepo{}
	svc := NewService(repo, nil, &recordingGroup{}, time.UTC, 2, testLogger())

	repo.On("CountForDay", mock.Anything, int64(100), domain.CommoditySilver, mock.Anything).Return(2, nil)

	err := svc.Submit(context.Background(), offerParticipant(), domain.CommoditySilver, 5, 70)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "E110", appErr.Code)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckDailyCapBelowLimit(t *testing.T) {
	repo := &mockOfferRepo{}
	svc := NewService(repo, nil, nil, time.UTC, 2, testLogger())

	repo.On("CountForDay", mock.Anything, int64(100), domain.CommodityGold, mock.Anything).Return(1, nil)

	assert.NoError(t, svc.CheckDailyCap(context.Background(), 100, domain.CommodityGold))
}

func TestCheckDailyCapCountsPerCalendarDay(t *testing.T) {
	repo := &mockOfferRepo{}
	svc := NewService(repo, nil, nil, time.UTC, 2, testLogger())
	svc.now = func() time.Time {
		return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	}

	repo.On("CountForDay", mock.Anything, int64(100), domain.CommodityGold,
		time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)).Return(0, nil)

	require.NoError(t, svc.CheckDailyCap(context.Background(), 100, domain.CommodityGold))
	repo.AssertExpectations(t)
}

func TestSubmitGroupNotifyFailureDoesNotFailSubmission(t *testing.T) {
	repo := &mockOfferRepo{}
	group := &recordingGroup{err: errors.New("chat unreachable")}
	svc := NewService(repo, nil, group, time.UTC, 2, testLogger())

	repo.On("CountForDay", mock.Anything, int64(100), domain.CommodityGold, mock.Anything).Return(0, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := svc.Submit(context.Background(), offerParticipant(), domain.CommodityGold, 3, 80)
	assert.NoError(t, err)
}

func TestCheckAllowedWithoutGate(t *testing.T) {
	svc := NewService(&mockOfferRepo{}, nil, nil, time.UTC, 2, testLogger())
	assert.NoError(t, svc.CheckAllowed(context.Background()))
}
