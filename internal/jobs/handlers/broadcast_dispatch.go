package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/metals-desk/quotes-bot/internal/broadcast"
	"github.com/metals-desk/quotes-bot/internal/jobs"
)

// BroadcastDispatchHandler runs one schedule evaluation per delivered task.
type BroadcastDispatchHandler struct {
	dispatcher *broadcast.Dispatcher
	log        *slog.Logger
}

func NewBroadcastDispatchHandler(dispatcher *broadcast.Dispatcher, log *slog.Logger) *BroadcastDispatchHandler {
	if log == nil {
		log = slog.Default()
	}

	return &BroadcastDispatchHandler{dispatcher: dispatcher, log: log}
}

func (h *BroadcastDispatchHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.BroadcastDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "broadcast dispatch: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return err
	}

	if err := h.dispatcher.Run(ctx); err != nil {
		h.log.ErrorContext(ctx, "broadcast dispatch failed",
			slog.Time("scheduled_at", payload.ScheduledAt),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}
