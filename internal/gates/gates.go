// Package gates decides whether the purchase offer branch may start: a
// global enabled flag plus a business-hours and holiday-calendar check in
// the desk timezone.
package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/repository"
)

// OfferGate evaluates the offer submission preconditions. Both checks run at
// branch entry; failing either clears the session before the form starts.
type OfferGate struct {
	settings  repository.SettingsRepository
	calendar  *Calendar
	log       *slog.Logger
	loc       *time.Location
	startHour int
	endHour   int

	enabledFallback atomic.Bool

	now func() time.Time
}

// NewOfferGate constructs an OfferGate.
func NewOfferGate(
	settings repository.SettingsRepository,
	calendar *Calendar,
	loc *time.Location,
	startHour, endHour int,
	enabledFallback bool,
	log *slog.Logger,
) *OfferGate {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	g := &OfferGate{
		settings:  settings,
		calendar:  calendar,
		log:       log,
		loc:       loc,
		startHour: startHour,
		endHour:   endHour,
		now:       time.Now,
	}
	g.enabledFallback.Store(enabledFallback)

	return g
}

// SetEnabledFallback updates the flag used when the settings store has no
// offers_enabled row. Wired to config hot reload.
func (g *OfferGate) SetEnabledFallback(enabled bool) {
	g.enabledFallback.Store(enabled)
}

// Check returns nil when offers are currently accepted, or a GateClosed
// error naming the specific reason. A settings store failure is surfaced as
// a store error, not a closed gate.
func (g *OfferGate) Check(ctx context.Context) error {
	enabled := g.enabledFallback.Load()
	if g.settings != nil {
		value, err := g.settings.GetBool(ctx, repository.SettingKeyOffersEnabled, enabled)
		if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
			g.log.Error("failed to read offers_enabled setting", slog.Any("error", err))
			return apperrors.NewStoreError(err)
		}
		enabled = value
	}

	if !enabled {
		return apperrors.NewGateClosedError("Прием предложений временно приостановлен")
	}

	now := g.now().In(g.loc)

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return apperrors.NewGateClosedError("Предложения принимаются только по рабочим дням")
	}

	if g.calendar.IsHoliday(now) {
		return apperrors.NewGateClosedError("Сегодня праздничный день, предложения не принимаются")
	}

	if now.Hour() < g.startHour || now.Hour() >= g.endHour {
		return apperrors.NewGateClosedError(fmt.Sprintf("Предложения принимаются с %02d:00 до %02d:00", g.startHour, g.endHour))
	}

	return nil
}
