package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ErrNotReady indicates that the process has not finished starting up or a
// dependency check failed.
var ErrNotReady = errors.New("not ready")

// Probes implements HealthChecker. Liveness passes as long as the process
// responds; readiness additionally requires MarkReady and a passing
// dependency check.
type Probes struct {
	log   *slog.Logger
	ready atomic.Bool
	check func(ctx context.Context) error
}

// NewProbes creates probes. check is optional and runs on every readiness
// call; a nil check makes readiness depend on MarkReady alone.
func NewProbes(log *slog.Logger, check func(ctx context.Context) error) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, check: check}
}

// MarkReady flips the probe to ready once startup wiring is complete.
func (p *Probes) MarkReady() {
	p.ready.Store(true)
}

// Liveness reports success while the process can serve the probe at all.
func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

// Readiness reports whether the process finished startup and its
// dependencies answer.
func (p *Probes) Readiness(ctx context.Context) error {
	if !p.ready.Load() {
		return ErrNotReady
	}
	if p.check != nil {
		if err := p.check(ctx); err != nil {
			p.log.Warn("readiness check failed", slog.Any("error", err))
			return err
		}
	}
	return nil
}
