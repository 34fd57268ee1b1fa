// Package broadcast evaluates the notification schedule once per minute and
// opens timed quote-response sessions for opted-in participants.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/metals-desk/quotes-bot/internal/deadline"
	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/repository"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/pkg/metrics"
)

// Transport delivers broadcast messages. Quote requests carry the
// send/decline keyboard; informational messages carry none.
type Transport interface {
	SendQuoteRequest(telegramID int64, text string) error
	SendInfo(telegramID int64, text string) error
}

// Finalizer produces the deadline callback armed for each opened session.
type Finalizer interface {
	Finalize(ctx context.Context, telegramID int64, firedDeadline time.Time)
}

// Dispatcher matches schedule entries against the current minute and fans
// the due ones out to participants.
type Dispatcher struct {
	schedule     repository.ScheduleRepository
	participants *participant.Service
	sessions     state.Manager
	timers       *deadline.Scheduler
	finalizer    Finalizer
	transport    Transport
	loc          *time.Location
	defaultWin   time.Duration
	log          *slog.Logger

	now func() time.Time
}

// NewDispatcher constructs a broadcast Dispatcher.
func NewDispatcher(
	schedule repository.ScheduleRepository,
	participants *participant.Service,
	sessions state.Manager,
	timers *deadline.Scheduler,
	finalizer Finalizer,
	transport Transport,
	loc *time.Location,
	defaultWindow time.Duration,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if defaultWindow <= 0 {
		defaultWindow = 15 * time.Minute
	}

	return &Dispatcher{
		schedule:     schedule,
		participants: participants,
		sessions:     sessions,
		timers:       timers,
		finalizer:    finalizer,
		transport:    transport,
		loc:          loc,
		defaultWin:   defaultWindow,
		log:          log,
		now:          time.Now,
	}
}

// Run performs one evaluation: entries whose trigger time equals the
// current minute are dispatched. One participant's failure never aborts the
// rest of the batch.
func (d *Dispatcher) Run(ctx context.Context) error {
	now := d.now().In(d.loc)
	currentMinute := now.Format("15:04")

	entries, err := d.schedule.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("read broadcast schedule: %w", err)
	}

	d.logNearest(entries, now)

	for _, entry := range entries {
		if entry.TriggerTime != currentMinute {
			continue
		}
		d.dispatch(ctx, entry, now)
	}

	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, entry *domain.ScheduleEntry, now time.Time) {
	batchID := uuid.NewString()
	log := d.log.With(
		slog.String("batch_id", batchID),
		slog.String("trigger_time", entry.TriggerTime),
		slog.String("kind", string(entry.Kind)),
	)

	recipients, err := d.participants.ListNotifiable(ctx)
	if err != nil {
		log.Error("failed to list broadcast recipients", slog.Any("error", err))
		return
	}

	log.Info("dispatching broadcast", slog.Int("recipients", len(recipients)))

	window := entry.ResponseWindow
	if window <= 0 {
		window = d.defaultWin
	}

	for _, recipient := range recipients {
		var err error
		if entry.Kind == domain.BroadcastQuoteRequest {
			err = d.openTimedSession(ctx, recipient.TelegramID, entry.Body, window)
		} else {
			err = d.transport.SendInfo(recipient.TelegramID, entry.Body)
		}

		if err != nil {
			metrics.RecordBroadcast(string(entry.Kind), "error")
			log.Error("broadcast delivery failed",
				slog.Int64("telegram_id", recipient.TelegramID),
				slog.Any("error", err),
			)
			continue
		}

		metrics.RecordBroadcast(string(entry.Kind), "ok")
	}
}

// openTimedSession interrupts whatever the participant was doing: the old
// timer is cancelled, the session is replaced wholesale, and a fresh timer
// is armed for the new deadline before the prompt goes out.
func (d *Dispatcher) openTimedSession(ctx context.Context, telegramID int64, body string, window time.Duration) error {
	d.timers.Cancel(telegramID)

	deadlineAt := d.now().Add(window)

	if _, err := d.sessions.Update(ctx, telegramID, func(sess *state.Session) error {
		sess.Reset()
		sess.Deadline = &deadlineAt
		return nil
	}); err != nil {
		return fmt.Errorf("open timed session: %w", err)
	}

	d.timers.Arm(telegramID, deadlineAt, d.finalizer.Finalize)
	metrics.SetActiveTimers(d.timers.Len())

	text := fmt.Sprintf("%s\n\n⏱ На предоставление котировок даётся %d минут", body, int(window.Minutes()))
	if err := d.transport.SendQuoteRequest(telegramID, text); err != nil {
		return fmt.Errorf("deliver quote request: %w", err)
	}

	return nil
}

// logNearest announces the next pending notification today, mirroring each
// evaluation in the operator log.
func (d *Dispatcher) logNearest(entries []*domain.ScheduleEntry, now time.Time) {
	var nearest time.Time
	for _, entry := range entries {
		at, err := time.ParseInLocation("15:04", entry.TriggerTime, d.loc)
		if err != nil {
			continue
		}
		at = time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, d.loc)
		if at.After(now) && (nearest.IsZero() || at.Before(nearest)) {
			nearest = at
		}
	}

	if nearest.IsZero() {
		d.log.Debug("no more notifications scheduled today")
		return
	}

	d.log.Debug("next notification scheduled", slog.String("at", nearest.Format("15:04")))
}
