package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// OfferRepository defines persistence operations for purchase offers.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	// CountForDay returns how many offers the participant already submitted
	// for the commodity on the calendar day containing the given instant.
	CountForDay(ctx context.Context, telegramID int64, commodity domain.Commodity, day time.Time) (int, error)
}

type offerRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewOfferRepository creates a SQL-backed offer repository.
func NewOfferRepository(db *sql.DB, log *slog.Logger) OfferRepository {
	return &offerRepository{
		db:  db,
		log: log,
	}
}

// Create persists an accepted purchase offer.
func (r *offerRepository) Create(ctx context.Context, offer *domain.Offer) error {
	const query = `
		INSERT INTO offers (telegram_id, name, organization, org_type, submitted_at, commodity, quantity_kg, quote_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		offer.TelegramID,
		offer.Name,
		offer.Organization,
		offer.OrgType,
		offer.SubmittedAt,
		string(offer.Commodity),
		offer.QuantityKg,
		offer.QuotePct,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to insert offer", slog.Int64("telegram_id", offer.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("insert offer: %w", err)
	}

	return nil
}

// CountForDay counts same-day, same-commodity offers by the participant.
// The day boundary follows the location attached to the provided instant.
func (r *offerRepository) CountForDay(ctx context.Context, telegramID int64, commodity domain.Commodity, day time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM offers
		WHERE telegram_id = $1
		  AND commodity = $2
		  AND submitted_at >= $3
		  AND submitted_at < $4
	`

	year, month, date := day.Date()
	dayStart := time.Date(year, month, date, 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	if err := r.db.QueryRowContext(ctx, query, telegramID, string(commodity), dayStart, dayEnd).Scan(&count); err != nil {
		return 0, fmt.Errorf("count offers for day: %w", err)
	}

	return count, nil
}
