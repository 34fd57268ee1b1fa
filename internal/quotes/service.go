// Package quotes handles timed quote-response sessions: immediate
// per-commodity persistence, declines, and exactly-once deadline
// finalization.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/metals-desk/quotes-bot/internal/deadline"
	"github.com/metals-desk/quotes-bot/internal/domain"
	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/repository"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/pkg/metrics"
)

// Notifier sends out-of-band messages to participants, restoring the main
// menu keyboard on terminal notices.
type Notifier interface {
	SendMainMenu(telegramID int64, text string) error
}

// errFinalizeSuperseded aborts a timeout finalization that lost the race to
// a natural completion or a newer broadcast.
var errFinalizeSuperseded = errors.New("finalization superseded")

// ErrSessionExpired reports that the response window closed before the
// participant's action could be applied; the deadline finalizer owns the
// remaining outcome rows.
var ErrSessionExpired = errors.New("quote session expired")

// Service coordinates quote-response sessions.
type Service struct {
	repo         repository.QuoteRepository
	participants *participant.Service
	sessions     state.Manager
	timers       *deadline.Scheduler
	notifier     Notifier
	log          *slog.Logger

	now func() time.Time
}

// NewService constructs a quote Service.
func NewService(
	repo repository.QuoteRepository,
	participants *participant.Service,
	sessions state.Manager,
	timers *deadline.Scheduler,
	notifier Notifier,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:         repo,
		participants: participants,
		sessions:     sessions,
		timers:       timers,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// RecordValue persists a numeric quote for one commodity immediately. Quote
// values are never batched: each answered commodity gets its row as soon as
// the value is accepted.
func (s *Service) RecordValue(ctx context.Context, p *domain.Participant, commodity domain.Commodity, valuePct float64) error {
	outcome := &domain.QuoteOutcome{
		TelegramID:   p.TelegramID,
		Name:         p.Name,
		Organization: p.Organization,
		OrgType:      p.OrgType,
		RecordedAt:   s.now(),
		Commodity:    commodity,
		Kind:         domain.OutcomeValue,
		ValuePct:     valuePct,
	}

	if err := s.appendOutcome(ctx, outcome); err != nil {
		return err
	}

	s.log.Info("quote recorded",
		slog.Int64("telegram_id", p.TelegramID),
		slog.String("commodity", string(commodity)),
		slog.Float64("value_pct", valuePct),
	)

	return nil
}

// RecordDecline persists a declined outcome row for each given commodity.
func (s *Service) RecordDecline(ctx context.Context, p *domain.Participant, commodities ...domain.Commodity) error {
	for _, commodity := range commodities {
		outcome := &domain.QuoteOutcome{
			TelegramID:   p.TelegramID,
			Name:         p.Name,
			Organization: p.Organization,
			OrgType:      p.OrgType,
			RecordedAt:   s.now(),
			Commodity:    commodity,
			Kind:         domain.OutcomeDeclined,
		}

		if err := s.appendOutcome(ctx, outcome); err != nil {
			return err
		}
	}

	s.log.Info("quote declined",
		slog.Int64("telegram_id", p.TelegramID),
		slog.Int("commodities", len(commodities)),
	)

	return nil
}

// DeclineRemaining writes a declined outcome for every commodity the
// participant has not answered yet and ends the session. With declineAll set,
// a session that never reached the quote branch declines the full commodity
// list; otherwise a session with no live quote branch ends without rows. The
// rows are written under the participant lock and the declined commodities
// are marked answered before the lock is released, so a finalizer firing at
// the same moment either sees them answered or has already flagged the
// session, in which case ErrSessionExpired is returned and the finalizer
// keeps ownership of the rows. A store failure leaves the session untouched.
func (s *Service) DeclineRemaining(ctx context.Context, p *domain.Participant, declineAll bool) ([]domain.Commodity, error) {
	var declined []domain.Commodity

	_, err := s.sessions.Update(ctx, p.TelegramID, func(sess *state.Session) error {
		if sess.TimedOut || sess.Expired(s.now()) {
			return ErrSessionExpired
		}
		if sess.Quote == nil && sess.Deadline == nil && !declineAll {
			return nil
		}
		if sess.Quote == nil {
			sess.Quote = &state.QuoteDraft{}
		}

		declined = sess.Quote.Unanswered()
		if len(declined) == 0 {
			return nil
		}

		if err := s.RecordDecline(ctx, p, declined...); err != nil {
			declined = nil
			return err
		}

		sess.Quote.Answered = append(sess.Quote.Answered, declined...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return declined, s.Complete(ctx, p.TelegramID)
}

// Complete ends a quote-response session naturally: the timer is cancelled
// and the session cleared. This is the sole non-timeout path that cancels
// the timer.
func (s *Service) Complete(ctx context.Context, telegramID int64) error {
	s.timers.Cancel(telegramID)
	metrics.SetActiveTimers(s.timers.Len())
	return s.sessions.Clear(ctx, telegramID)
}

// Finalize is the deadline finalizer armed by the broadcast dispatcher. It
// runs when the response window elapses without natural completion and has
// no effect when the session's deadline no longer matches the fired timer
// or the session is already finalized.
func (s *Service) Finalize(ctx context.Context, telegramID int64, firedDeadline time.Time) {
	var unanswered []domain.Commodity

	_, err := s.sessions.Update(ctx, telegramID, func(sess *state.Session) error {
		if sess.Deadline == nil || !sess.Deadline.Equal(firedDeadline) {
			return errFinalizeSuperseded
		}
		if sess.TimedOut {
			return errFinalizeSuperseded
		}

		sess.TimedOut = true

		if sess.Quote == nil {
			unanswered = domain.Commodities()
		} else {
			unanswered = sess.Quote.Unanswered()
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errFinalizeSuperseded) {
			s.log.Debug("timeout finalization skipped", slog.Int64("telegram_id", telegramID))
			return
		}
		s.log.Error("timeout finalization failed to flag session",
			slog.Int64("telegram_id", telegramID),
			slog.Any("error", err),
		)
		return
	}

	p, err := s.participants.Get(ctx, telegramID)
	if err != nil {
		s.log.Error("timeout finalization: participant lookup failed",
			slog.Int64("telegram_id", telegramID),
			slog.Any("error", err),
		)
		_ = s.sessions.Clear(ctx, telegramID)
		return
	}

	for _, commodity := range unanswered {
		outcome := &domain.QuoteOutcome{
			TelegramID:   p.TelegramID,
			Name:         p.Name,
			Organization: p.Organization,
			OrgType:      p.OrgType,
			RecordedAt:   s.now(),
			Commodity:    commodity,
			Kind:         domain.OutcomeExpired,
		}

		if err := s.appendOutcome(ctx, outcome); err != nil {
			s.log.Error("timeout finalization: failed to persist expired outcome",
				slog.Int64("telegram_id", telegramID),
				slog.String("commodity", string(commodity)),
				slog.Any("error", err),
			)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendMainMenu(telegramID, "⌛ Время вышло!"); err != nil {
			s.log.Error("timeout finalization: failed to send notice",
				slog.Int64("telegram_id", telegramID),
				slog.Any("error", err),
			)
		}
	}

	if err := s.sessions.Clear(ctx, telegramID); err != nil {
		s.log.Error("timeout finalization: failed to clear session",
			slog.Int64("telegram_id", telegramID),
			slog.Any("error", err),
		)
	}

	metrics.RecordTimeout()
	metrics.SetActiveTimers(s.timers.Len())

	s.log.Info("session finalized by timeout",
		slog.Int64("telegram_id", telegramID),
		slog.Int("expired_commodities", len(unanswered)),
	)
}

func (s *Service) appendOutcome(ctx context.Context, outcome *domain.QuoteOutcome) error {
	if err := apperrors.WithRetry(ctx, func() error {
		if err := s.repo.CreateOutcome(ctx, outcome); err != nil {
			return apperrors.NewStoreError(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("append quote outcome: %w", err)
	}

	metrics.RecordQuoteOutcome(string(outcome.Commodity), string(outcome.Kind))
	return nil
}
