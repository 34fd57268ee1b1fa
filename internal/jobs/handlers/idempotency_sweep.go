package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/metals-desk/quotes-bot/internal/idempotency"
)

// IdempotencySweepHandler clears stale update-dedup records from Redis.
type IdempotencySweepHandler struct {
	cleaner *idempotency.Cleaner
	log     *slog.Logger
}

func NewIdempotencySweepHandler(cleaner *idempotency.Cleaner, log *slog.Logger) *IdempotencySweepHandler {
	if log == nil {
		log = slog.Default()
	}

	return &IdempotencySweepHandler{cleaner: cleaner, log: log}
}

func (h *IdempotencySweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return h.cleaner.Sweep(ctx)
}
