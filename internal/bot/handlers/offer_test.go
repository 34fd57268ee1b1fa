package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/offers"
	"github.com/metals-desk/quotes-bot/internal/state"
)

type stubOfferRepo struct {
	mu        sync.Mutex
	createErr error
	count     int
	offers    []*domain.Offer
}

func (r *stubOfferRepo) Create(ctx context.Context, offer *domain.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.offers = append(r.offers, offer)
	return nil
}

func (r *stubOfferRepo) CountForDay(ctx context.Context, telegramID int64, commodity domain.Commodity, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, nil
}

func newOfferService(f *handlerFixture, repo *stubOfferRepo) *offers.Service {
	return offers.NewService(repo, nil, nil, time.UTC, 3, f.log)
}

func (f *handlerFixture) openOfferQuoteSession(t *testing.T, id int64) {
	t.Helper()

	ctx := context.Background()
	for _, next := range []state.State{state.StateOfferCommodity, state.StateOfferQuantity, state.StateOfferQuote} {
		next := next
		_, err := f.sessions.Update(ctx, id, func(sess *state.Session) error {
			if sess.Offer == nil {
				sess.Offer = &state.OfferDraft{Commodity: domain.CommodityGold, QuantityKg: 100}
			}
			sess.State = next
			return nil
		})
		require.NoError(t, err)
	}
}

func TestOfferSubmitAccepted(t *testing.T) {
	f := newHandlerFixture(t)
	repo := &stubOfferRepo{}
	h := NewOfferQuoteHandler(f.sessions, newOfferService(f, repo), f.flow, f.kb, f.log)

	f.openOfferQuoteSession(t, 100)

	c := newTestCtx(100, "1.5")
	SetParticipant(c, handlerParticipant(100))
	require.NoError(t, h(c))

	require.Len(t, repo.offers, 1)
	assert.Equal(t, domain.CommodityGold, repo.offers[0].Commodity)

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
}

func TestOfferSubmitStoreFailureKeepsSession(t *testing.T) {
	f := newHandlerFixture(t)
	repo := &stubOfferRepo{createErr: errors.New("connection refused")}
	h := NewOfferQuoteHandler(f.sessions, newOfferService(f, repo), f.flow, f.kb, f.log)

	f.openOfferQuoteSession(t, 100)

	c := newTestCtx(100, "1.5")
	SetParticipant(c, handlerParticipant(100))
	require.Error(t, h(c))

	// The form survives the outage: same step, same draft, so the
	// participant can resend the quote once the store is back.
	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateOfferQuote, sess.State)
	require.NotNil(t, sess.Offer)
	assert.Equal(t, domain.CommodityGold, sess.Offer.Commodity)
}

func TestOfferSubmitDailyCapEndsForm(t *testing.T) {
	f := newHandlerFixture(t)
	repo := &stubOfferRepo{count: 3}
	h := NewOfferQuoteHandler(f.sessions, newOfferService(f, repo), f.flow, f.kb, f.log)

	f.openOfferQuoteSession(t, 100)

	c := newTestCtx(100, "1.5")
	SetParticipant(c, handlerParticipant(100))
	require.Error(t, h(c))

	// A cap rejection is terminal for today: the form is gone.
	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Offer)
	assert.Empty(t, repo.offers)
}

func TestOfferStartDuringExpiredWindowIsRejected(t *testing.T) {
	f := newHandlerFixture(t)
	repo := &stubOfferRepo{}
	h := NewOfferStartHandler(f.sessions, newOfferService(f, repo), f.kb, f.log)

	deadlineAt := time.Now().Add(-time.Second)
	_, err := f.sessions.Update(context.Background(), 100, func(sess *state.Session) error {
		sess.Deadline = &deadlineAt
		return nil
	})
	require.NoError(t, err)

	c := newTestCtx(100, "📨 Направить предложение о покупке")
	SetParticipant(c, handlerParticipant(100))
	require.NoError(t, h(c))

	assert.Equal(t, quoteExpiredText, c.lastSent())

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Nil(t, sess.Offer)
}

func TestOfferStepsDuringExpiredWindowAreRejected(t *testing.T) {
	f := newHandlerFixture(t)

	commodity := NewOfferCommodityHandler(f.sessions, f.flow, f.kb)
	quantity := NewOfferQuantityHandler(f.sessions, f.flow, f.kb)

	cases := []struct {
		name  string
		state state.State
		text  string
		h     Handler
	}{
		{"commodity", state.StateOfferCommodity, domain.CommodityGold.Title(), commodity},
		{"quantity", state.StateOfferQuantity, "100", quantity},
	}

	for i, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			id := int64(200 + i)
			deadlineAt := time.Now().Add(-time.Second)
			_, err := f.sessions.Update(context.Background(), id, func(sess *state.Session) error {
				sess.State = state.StateOfferCommodity
				sess.Offer = &state.OfferDraft{}
				sess.Deadline = &deadlineAt
				return nil
			})
			require.NoError(t, err)
			if tc.state != state.StateOfferCommodity {
				_, err = f.sessions.Update(context.Background(), id, func(sess *state.Session) error {
					sess.State = tc.state
					return nil
				})
				require.NoError(t, err)
			}

			c := newTestCtx(id, tc.text)
			SetParticipant(c, handlerParticipant(id))
			require.NoError(t, tc.h(c))

			assert.Equal(t, quoteExpiredText, c.lastSent())
		})
	}
}
