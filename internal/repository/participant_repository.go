// Package repository provides SQL-backed persistence for participants,
// offers, quote outcomes, the broadcast schedule, and settings.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// ErrParticipantNotFound indicates that no registration exists for the id.
var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository defines persistence operations for registered
// participants.
type ParticipantRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Participant, error)
	Create(ctx context.Context, participant *domain.Participant) error
	ListNotifiable(ctx context.Context) ([]*domain.Participant, error)
}

type participantRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewParticipantRepository creates a SQL-backed participant repository.
func NewParticipantRepository(db *sql.DB, log *slog.Logger) ParticipantRepository {
	return &participantRepository{
		db:  db,
		log: log,
	}
}

// FindByTelegramID retrieves a participant by their Telegram identifier.
func (r *participantRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Participant, error) {
	const query = `
		SELECT telegram_id, name, organization, org_type, contacts, notify_opt_in, registered_at
		FROM participants
		WHERE telegram_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, telegramID)

	var p domain.Participant
	if err := row.Scan(
		&p.TelegramID,
		&p.Name,
		&p.Organization,
		&p.OrgType,
		&p.Contacts,
		&p.NotifyOptIn,
		&p.RegisteredAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch participant", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select participant: %w", err)
	}

	return &p, nil
}

// Create persists a new participant registration.
func (r *participantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	const query = `
		INSERT INTO participants (telegram_id, name, organization, org_type, contacts, notify_opt_in, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		participant.TelegramID,
		participant.Name,
		participant.Organization,
		participant.OrgType,
		participant.Contacts,
		participant.NotifyOptIn,
		participant.RegisteredAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create participant", slog.Int64("telegram_id", participant.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("insert participant: %w", err)
	}

	return nil
}

// ListNotifiable returns every participant that opted in to broadcast
// notifications.
func (r *participantRepository) ListNotifiable(ctx context.Context) ([]*domain.Participant, error) {
	const query = `
		SELECT telegram_id, name, organization, org_type, contacts, notify_opt_in, registered_at
		FROM participants
		WHERE notify_opt_in
		ORDER BY registered_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select notifiable participants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(
			&p.TelegramID,
			&p.Name,
			&p.Organization,
			&p.OrgType,
			&p.Contacts,
			&p.NotifyOptIn,
			&p.RegisteredAt,
		); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}

	return out, nil
}
