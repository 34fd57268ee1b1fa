// Package offers handles purchase offer submission: entry gates, the daily
// per-commodity cap, persistence, and the group chat copy.
package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/metals-desk/quotes-bot/internal/domain"
	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/gates"
	"github.com/metals-desk/quotes-bot/internal/repository"
	"github.com/metals-desk/quotes-bot/pkg/metrics"
)

// GroupNotifier delivers a copy of accepted offers to the desk group chat.
type GroupNotifier interface {
	NotifyGroup(text string) error
}

// Service coordinates the purchase offer flow.
type Service struct {
	repo       repository.OfferRepository
	gate       *gates.OfferGate
	group      GroupNotifier
	log        *slog.Logger
	loc        *time.Location
	dailyLimit int

	now func() time.Time
}

// NewService constructs an offer Service.
func NewService(
	repo repository.OfferRepository,
	gate *gates.OfferGate,
	group GroupNotifier,
	loc *time.Location,
	dailyLimit int,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if dailyLimit <= 0 {
		dailyLimit = 2
	}

	return &Service{
		repo:       repo,
		gate:       gate,
		group:      group,
		log:        log,
		loc:        loc,
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

// CheckAllowed evaluates the offer entry gates. A GateClosed error carries
// the user-facing reason.
func (s *Service) CheckAllowed(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	return s.gate.Check(ctx)
}

// CheckDailyCap rejects the submission when the participant already reached
// the per-commodity daily limit.
func (s *Service) CheckDailyCap(ctx context.Context, telegramID int64, commodity domain.Commodity) error {
	count, err := s.repo.CountForDay(ctx, telegramID, commodity, s.now().In(s.loc))
	if err != nil {
		return apperrors.NewStoreError(err)
	}

	if count >= s.dailyLimit {
		s.log.Info("daily offer limit reached",
			slog.Int64("telegram_id", telegramID),
			slog.String("commodity", string(commodity)),
			slog.Int("limit", s.dailyLimit),
		)
		return apperrors.NewRateLimitError(commodity.Title(), s.dailyLimit)
	}

	return nil
}

// Submit persists an accepted offer and echoes it to the group chat. The
// daily cap is re-checked at submission time: the form takes long enough
// that the count may have changed since branch entry.
func (s *Service) Submit(ctx context.Context, p *domain.Participant, commodity domain.Commodity, quantityKg, quotePct float64) error {
	if err := s.CheckDailyCap(ctx, p.TelegramID, commodity); err != nil {
		return err
	}

	offer := &domain.Offer{
		TelegramID:   p.TelegramID,
		Name:         p.Name,
		Organization: p.Organization,
		OrgType:      p.OrgType,
		SubmittedAt:  s.now().In(s.loc),
		Commodity:    commodity,
		QuantityKg:   quantityKg,
		QuotePct:     quotePct,
	}

	if err := apperrors.WithRetry(ctx, func() error {
		if err := s.repo.Create(ctx, offer); err != nil {
			return apperrors.NewStoreError(err)
		}
		return nil
	}); err != nil {
		return err
	}

	metrics.RecordOffer(string(commodity))
	s.log.Info("offer accepted",
		slog.Int64("telegram_id", p.TelegramID),
		slog.String("commodity", string(commodity)),
		slog.Float64("quantity_kg", quantityKg),
		slog.Float64("quote_pct", quotePct),
	)

	s.notifyGroup(p, offer)

	return nil
}

// notifyGroup sends the offer copy to the desk chat. Failures are logged
// and never surfaced: the offer is already persisted.
func (s *Service) notifyGroup(p *domain.Participant, offer *domain.Offer) {
	if s.group == nil {
		return
	}

	text := fmt.Sprintf(
		"📨 Новое предложение о покупке:\n"+
			"• От: %s (%s)\n"+
			"• Контакты: %s\n"+
			"• Металл: %s\n"+
			"• Масса: %g кг\n"+
			"• Котировка: %g%%",
		p.Organization, p.Name, p.Contacts, offer.Commodity.Title(), offer.QuantityKg, offer.QuotePct,
	)

	if err := s.group.NotifyGroup(text); err != nil {
		s.log.Error("failed to notify group about offer",
			slog.Int64("telegram_id", p.TelegramID),
			slog.Any("error", err),
		)
	}
}
