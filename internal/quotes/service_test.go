package quotes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/metals-desk/quotes-bot/internal/deadline"
	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/state"
)

type recordingQuoteRepo struct {
	mu       sync.Mutex
	outcomes []*domain.QuoteOutcome
}

func (r *recordingQuoteRepo) CreateOutcome(ctx context.Context, outcome *domain.QuoteOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *recordingQuoteRepo) all() []*domain.QuoteOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.QuoteOutcome(nil), r.outcomes...)
}

type failingQuoteRepo struct{ err error }

func (r *failingQuoteRepo) CreateOutcome(ctx context.Context, outcome *domain.QuoteOutcome) error {
	return r.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func (n *recordingNotifier) SendMainMenu(telegramID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[int64][]string)
	}
	n.messages[telegramID] = append(n.messages[telegramID], text)
	return nil
}

type stubParticipantRepo struct {
	mock.Mock
}

func (m *stubParticipantRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Participant, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func (m *stubParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	return m.Called(ctx, p).Error(0)
}

func (m *stubParticipantRepo) ListNotifiable(ctx context.Context) ([]*domain.Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

type quoteFixture struct {
	svc      *Service
	repo     *recordingQuoteRepo
	sessions state.Manager
	timers   *deadline.Scheduler
	notifier *recordingNotifier
	pRepo    *stubParticipantRepo
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	repo := &recordingQuoteRepo{}
	pRepo := &stubParticipantRepo{}
	notifier := &recordingNotifier{}
	sessions := state.NewManager(state.NewMemoryStorage(), log)
	timers := deadline.NewScheduler(log)

	svc := NewService(repo, participant.NewService(pRepo, nil, log), sessions, timers, notifier, log)

	return &quoteFixture{
		svc:      svc,
		repo:     repo,
		sessions: sessions,
		timers:   timers,
		notifier: notifier,
		pRepo:    pRepo,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testParticipant(id int64) *domain.Participant {
	return &domain.Participant{
		TelegramID:   id,
		Name:         "Иван Петров",
		Organization: "ООО Ломбард",
		OrgType:      "Ломбард",
	}
}

// openTimedSession mirrors what the broadcast dispatcher does when a quote
// request goes out: a fresh session carrying the response deadline.
func (f *quoteFixture) openTimedSession(t *testing.T, id int64, deadlineAt time.Time) {
	t.Helper()

	_, err := f.sessions.Update(context.Background(), id, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		return nil
	})
	require.NoError(t, err)
}

func TestRecordValuePersistsImmediately(t *testing.T) {
	f := newQuoteFixture(t)
	p := testParticipant(100)

	err := f.svc.RecordValue(context.Background(), p, domain.CommodityGold, 82.5)
	require.NoError(t, err)

	outcomes := f.repo.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeValue, outcomes[0].Kind)
	assert.Equal(t, domain.CommodityGold, outcomes[0].Commodity)
	assert.Equal(t, 82.5, outcomes[0].ValuePct)
	assert.Equal(t, p.Name, outcomes[0].Name)
	assert.Equal(t, p.Organization, outcomes[0].Organization)
}

func TestRecordDeclineWritesRowPerCommodity(t *testing.T) {
	f := newQuoteFixture(t)
	p := testParticipant(100)

	err := f.svc.RecordDecline(context.Background(), p, domain.CommodityGold, domain.CommoditySilver)
	require.NoError(t, err)

	outcomes := f.repo.all()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeDeclined, o.Kind)
	}
	assert.Equal(t, domain.CommodityGold, outcomes[0].Commodity)
	assert.Equal(t, domain.CommoditySilver, outcomes[1].Commodity)
}

func TestCompleteCancelsTimerAndClearsSession(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	deadlineAt := time.Now().Add(10 * time.Minute)
	f.openTimedSession(t, 100, deadlineAt)
	f.timers.Arm(100, deadlineAt, f.svc.Finalize)

	require.NoError(t, f.svc.Complete(ctx, 100))

	_, armed := f.timers.Armed(100)
	assert.False(t, armed)

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Deadline)
}

func TestFinalizeExpiresAllCommoditiesWhenNothingAnswered(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	p := testParticipant(100)
	f.pRepo.On("FindByTelegramID", mock.Anything, int64(100)).Return(p, nil)

	deadlineAt := time.Now().Add(-time.Second)
	f.openTimedSession(t, 100, deadlineAt)

	f.svc.Finalize(ctx, 100, deadlineAt)

	outcomes := f.repo.all()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeExpired, o.Kind)
		assert.Equal(t, p.Name, o.Name)
	}

	assert.Len(t, f.notifier.messages[100], 1)

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.False(t, sess.TimedOut)
	assert.Nil(t, sess.Deadline)
}

func TestFinalizeExpiresOnlyUnansweredCommodities(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	p := testParticipant(100)
	f.pRepo.On("FindByTelegramID", mock.Anything, int64(100)).Return(p, nil)

	deadlineAt := time.Now().Add(-time.Second)
	_, err := f.sessions.Update(ctx, 100, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		sess.Quote = &state.QuoteDraft{Answered: []domain.Commodity{domain.CommodityGold}}
		return nil
	})
	require.NoError(t, err)

	f.svc.Finalize(ctx, 100, deadlineAt)

	outcomes := f.repo.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeExpired, outcomes[0].Kind)
	assert.Equal(t, domain.CommoditySilver, outcomes[0].Commodity)
}

func TestFinalizeSkipsWhenDeadlineSuperseded(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	current := time.Now().Add(10 * time.Minute)
	f.openTimedSession(t, 100, current)

	// A fire carrying an older deadline lost the race to a newer broadcast.
	f.svc.Finalize(ctx, 100, current.Add(-time.Hour))

	assert.Empty(t, f.repo.all())
	assert.Empty(t, f.notifier.messages)

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, sess.Deadline)
	assert.True(t, sess.Deadline.Equal(current))
}

func TestFinalizeSkipsSessionWithoutDeadline(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	// Session already cleared by natural completion.
	f.svc.Finalize(ctx, 100, time.Now())

	assert.Empty(t, f.repo.all())
	assert.Empty(t, f.notifier.messages)
	f.pRepo.AssertNotCalled(t, "FindByTelegramID", mock.Anything, mock.Anything)
}

func TestDeclineRemainingWritesRowsForUnanswered(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	p := testParticipant(100)

	deadlineAt := time.Now().Add(10 * time.Minute)
	_, err := f.sessions.Update(ctx, 100, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		sess.Quote = &state.QuoteDraft{Answered: []domain.Commodity{domain.CommodityGold}}
		return nil
	})
	require.NoError(t, err)
	f.timers.Arm(100, deadlineAt, f.svc.Finalize)

	declined, err := f.svc.DeclineRemaining(ctx, p, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Commodity{domain.CommoditySilver}, declined)

	outcomes := f.repo.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeDeclined, outcomes[0].Kind)
	assert.Equal(t, domain.CommoditySilver, outcomes[0].Commodity)

	_, armed := f.timers.Armed(100)
	assert.False(t, armed)

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Deadline)
}

func TestDeclineRemainingDeclinesAllWithoutDraft(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	p := testParticipant(100)

	declined, err := f.svc.DeclineRemaining(ctx, p, true)
	require.NoError(t, err)
	assert.Equal(t, domain.Commodities(), declined)

	outcomes := f.repo.all()
	require.Len(t, outcomes, len(domain.Commodities()))
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeDeclined, o.Kind)
	}
}

func TestDeclineRemainingSkipsIdleSessionOnCancel(t *testing.T) {
	f := newQuoteFixture(t)

	// /cancel outside any response window ends the session without rows.
	declined, err := f.svc.DeclineRemaining(context.Background(), testParticipant(100), false)
	require.NoError(t, err)
	assert.Empty(t, declined)
	assert.Empty(t, f.repo.all())
}

func TestDeclineRemainingRefusesFinalizedSession(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	// The session as the finalizer leaves it while writing the expired rows.
	deadlineAt := time.Now().Add(-time.Second)
	_, err := f.sessions.Update(ctx, 100, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		sess.TimedOut = true
		return nil
	})
	require.NoError(t, err)

	declined, err := f.svc.DeclineRemaining(ctx, testParticipant(100), true)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, declined)
	assert.Empty(t, f.repo.all())
}

func TestDeclineRemainingRefusesExpiredSession(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	// Deadline passed but the timer has not fired yet: the finalizer owns
	// the remaining rows, so the decline writes nothing.
	f.openTimedSession(t, 100, time.Now().Add(-time.Second))

	declined, err := f.svc.DeclineRemaining(ctx, testParticipant(100), true)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, declined)
	assert.Empty(t, f.repo.all())
}

func TestDeclineRemainingStoreFailureKeepsSession(t *testing.T) {
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	sessions := state.NewManager(state.NewMemoryStorage(), log)
	timers := deadline.NewScheduler(log)
	svc := NewService(
		&failingQuoteRepo{err: errors.New("connection refused")},
		participant.NewService(&stubParticipantRepo{}, nil, log),
		sessions, timers, &recordingNotifier{}, log,
	)

	ctx := context.Background()
	deadlineAt := time.Now().Add(10 * time.Minute)
	_, err := sessions.Update(ctx, 100, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		sess.Quote = &state.QuoteDraft{Answered: []domain.Commodity{domain.CommodityGold}}
		return nil
	})
	require.NoError(t, err)
	timers.Arm(100, deadlineAt, svc.Finalize)

	_, err = svc.DeclineRemaining(ctx, testParticipant(100), false)
	require.Error(t, err)

	// The session and the timer survive so the participant can retry.
	sess, err := sessions.Get(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, sess.Deadline)
	assert.Equal(t, []domain.Commodity{domain.CommodityGold}, sess.Quote.Answered)

	_, armed := timers.Armed(100)
	assert.True(t, armed)
}

func TestFinalizeRunsAtMostOnce(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	p := testParticipant(100)
	f.pRepo.On("FindByTelegramID", mock.Anything, int64(100)).Return(p, nil)

	deadlineAt := time.Now().Add(-time.Second)
	f.openTimedSession(t, 100, deadlineAt)

	f.svc.Finalize(ctx, 100, deadlineAt)
	f.svc.Finalize(ctx, 100, deadlineAt)

	// The second call finds a cleared session and writes nothing.
	assert.Len(t, f.repo.all(), 2)
	assert.Len(t, f.notifier.messages[100], 1)
}
