package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// QuoteRepository defines persistence operations for quote outcomes. Every
// terminal result of a quote request — a value, a decline, or an expired
// window — is appended as one row per commodity.
type QuoteRepository interface {
	CreateOutcome(ctx context.Context, outcome *domain.QuoteOutcome) error
}

type quoteRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewQuoteRepository creates a SQL-backed quote outcome repository.
func NewQuoteRepository(db *sql.DB, log *slog.Logger) QuoteRepository {
	return &quoteRepository{
		db:  db,
		log: log,
	}
}

// CreateOutcome appends a quote outcome row. For declines and expirations
// the value column carries the outcome label instead of a number.
func (r *quoteRepository) CreateOutcome(ctx context.Context, outcome *domain.QuoteOutcome) error {
	const query = `
		INSERT INTO quote_outcomes (telegram_id, name, organization, org_type, recorded_at, commodity, kind, value_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var value sql.NullFloat64
	if outcome.Kind == domain.OutcomeValue {
		value = sql.NullFloat64{Float64: outcome.ValuePct, Valid: true}
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		outcome.TelegramID,
		outcome.Name,
		outcome.Organization,
		outcome.OrgType,
		outcome.RecordedAt,
		string(outcome.Commodity),
		string(outcome.Kind),
		value,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to insert quote outcome",
				slog.Int64("telegram_id", outcome.TelegramID),
				slog.String("commodity", string(outcome.Commodity)),
				slog.String("kind", string(outcome.Kind)),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("insert quote outcome: %w", err)
	}

	return nil
}
