// Package deadline owns the per-participant response-window timers.
package deadline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FinalizeFunc runs when a response window elapses without natural
// completion. The deadline passed is the exact value the timer was armed
// with, letting the finalizer reject superseded timers by comparison with
// the session's stored deadline.
type FinalizeFunc func(ctx context.Context, telegramID int64, deadline time.Time)

type handle struct {
	deadline time.Time
	timer    *time.Timer
}

// Scheduler keeps at most one live timer per participant. Arming replaces
// any existing timer; cancelling an absent or already-fired timer is a
// no-op; a fire that lost the race to a cancel or a newer arm has no effect.
type Scheduler struct {
	mu     sync.Mutex
	timers map[int64]*handle
	log    *slog.Logger
}

// NewScheduler constructs an empty timer registry.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		timers: make(map[int64]*handle),
		log:    log,
	}
}

// Arm schedules finalize to run at the given deadline for the participant,
// cancelling and replacing any timer armed earlier.
func (s *Scheduler) Arm(telegramID int64, deadline time.Time, finalize FinalizeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[telegramID]; ok {
		existing.timer.Stop()
		delete(s.timers, telegramID)
	}

	h := &handle{deadline: deadline}
	h.timer = time.AfterFunc(time.Until(deadline), func() {
		s.onFire(telegramID, deadline, finalize)
	})
	s.timers[telegramID] = h

	s.log.Debug("armed response deadline",
		slog.Int64("telegram_id", telegramID),
		slog.Time("deadline", deadline),
	)
}

// Cancel stops and removes the participant's timer. It reports whether a
// timer was actually cancelled; cancelling when none exists is a no-op.
func (s *Scheduler) Cancel(telegramID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.timers[telegramID]
	if !ok {
		return false
	}

	h.timer.Stop()
	delete(s.timers, telegramID)

	s.log.Debug("cancelled response deadline", slog.Int64("telegram_id", telegramID))
	return true
}

// Armed returns the deadline of the participant's live timer, if any.
func (s *Scheduler) Armed(telegramID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.timers[telegramID]
	if !ok {
		return time.Time{}, false
	}
	return h.deadline, true
}

// Len returns the number of live timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every live timer. Sessions are memory-resident, so pending
// windows do not survive a restart anyway; stopping keeps finalizers from
// firing against already-closed stores during shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.timers {
		h.timer.Stop()
		delete(s.timers, id)
	}
}

// onFire dispatches the finalizer exactly once per armed deadline. A handle
// missing from the registry means a natural completion cancelled it; a
// handle armed for a different deadline means a newer timer superseded this
// fire. Both cases return without side effect.
func (s *Scheduler) onFire(telegramID int64, deadline time.Time, finalize FinalizeFunc) {
	s.mu.Lock()
	h, ok := s.timers[telegramID]
	if !ok || !h.deadline.Equal(deadline) {
		s.mu.Unlock()
		return
	}
	delete(s.timers, telegramID)
	s.mu.Unlock()

	s.log.Info("response deadline elapsed",
		slog.Int64("telegram_id", telegramID),
		slog.Time("deadline", deadline),
	)

	if finalize != nil {
		finalize(context.Background(), telegramID, deadline)
	}
}
