package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/state"
)

func TestCancelDuringQuoteBranchRecordsDeclines(t *testing.T) {
	f := newHandlerFixture(t)

	f.openQuoteValueSession(t, 100, time.Now().Add(10*time.Minute))
	f.timers.Arm(100, time.Now().Add(10*time.Minute), f.quotes.Finalize)

	c := newTestCtx(100, "/cancel")
	SetParticipant(c, handlerParticipant(100))
	require.NoError(t, f.flow.Command(c))

	// Walking away from a live window is a refusal: both commodities get
	// their declined rows.
	outcomes := f.repo.all()
	require.Len(t, outcomes, len(domain.Commodities()))
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeDeclined, o.Kind)
	}

	_, armed := f.timers.Armed(100)
	assert.False(t, armed)

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Deadline)
}

func TestCancelButtonDuringQuoteValueRecordsDeclines(t *testing.T) {
	f := newHandlerFixture(t)
	h := NewQuoteValueHandler(f.sessions, f.quotes, f.flow, f.kb, f.log)

	f.openQuoteValueSession(t, 100, time.Now().Add(10*time.Minute))

	c := newTestCtx(100, "❌ Отмена")
	SetParticipant(c, handlerParticipant(100))
	require.NoError(t, h(c))

	outcomes := f.repo.all()
	require.Len(t, outcomes, len(domain.Commodities()))
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeDeclined, o.Kind)
	}
}

func TestCancelOutsideWindowWritesNoRows(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.sessions.Update(context.Background(), 100, func(sess *state.Session) error {
		sess.State = state.StateOfferCommodity
		sess.Offer = &state.OfferDraft{}
		return nil
	})
	require.NoError(t, err)

	c := newTestCtx(100, "/cancel")
	SetParticipant(c, handlerParticipant(100))
	require.NoError(t, f.flow.Command(c))

	assert.Empty(t, f.repo.all())

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Offer)
}

func TestCancelWithoutRegistrationClearsSession(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.sessions.Update(context.Background(), 100, func(sess *state.Session) error {
		sess.State = state.StateRegName
		sess.Registration = &state.RegistrationDraft{}
		return nil
	})
	require.NoError(t, err)

	c := newTestCtx(100, "/cancel")
	require.NoError(t, f.flow.Command(c))

	assert.Empty(t, f.repo.all())

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
}
