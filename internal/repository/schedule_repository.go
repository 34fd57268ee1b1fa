package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// ScheduleRepository reads the externally authored broadcast schedule.
type ScheduleRepository interface {
	ListEntries(ctx context.Context) ([]*domain.ScheduleEntry, error)
}

type scheduleRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewScheduleRepository creates a SQL-backed schedule repository.
func NewScheduleRepository(db *sql.DB, log *slog.Logger) ScheduleRepository {
	return &scheduleRepository{
		db:  db,
		log: log,
	}
}

// ListEntries returns every schedule row. The table is small and authored
// by hand; the dispatcher filters due entries in memory each minute.
func (r *scheduleRepository) ListEntries(ctx context.Context) ([]*domain.ScheduleEntry, error) {
	const query = `
		SELECT id, trigger_time, response_window_minutes, kind, body
		FROM broadcast_schedule
		ORDER BY trigger_time
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select broadcast schedule: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScheduleEntry
	for rows.Next() {
		var (
			entry         domain.ScheduleEntry
			windowMinutes int
			kind          string
		)
		if err := rows.Scan(&entry.ID, &entry.TriggerTime, &windowMinutes, &kind, &entry.Body); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		entry.ResponseWindow = time.Duration(windowMinutes) * time.Minute
		entry.Kind = domain.BroadcastKind(kind)
		out = append(out, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule rows: %w", err)
	}

	return out, nil
}
