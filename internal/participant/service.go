// Package participant provides business operations over registered
// participants.
package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/repository"
)

// ErrNotRegistered indicates that the Telegram user has no registration.
var ErrNotRegistered = errors.New("participant is not registered")

// Service provides read and registration operations over participants.
type Service struct {
	repo  repository.ParticipantRepository
	cache *Cache
	log   *slog.Logger
}

// NewService constructs a new Service instance. The cache is optional.
func NewService(repo repository.ParticipantRepository, cache *Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, cache: cache, log: log}
}

// Get returns the participant record, consulting the cache first.
func (s *Service) Get(ctx context.Context, telegramID int64) (*domain.Participant, error) {
	if cached, err := s.cache.Get(ctx, telegramID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn("participant cache read failed", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
	}

	p, err := s.repo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return nil, ErrNotRegistered
		}
		s.logError("get", telegramID, err)
		return nil, fmt.Errorf("get participant: %w", err)
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn("participant cache write failed", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
	}

	return p, nil
}

// IsRegistered reports whether a registration exists for the Telegram user.
func (s *Service) IsRegistered(ctx context.Context, telegramID int64) (bool, error) {
	_, err := s.Get(ctx, telegramID)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Register persists a completed registration form.
func (s *Service) Register(ctx context.Context, telegramID int64, name, organization, orgType, contacts string) (*domain.Participant, error) {
	p := &domain.Participant{
		TelegramID:   telegramID,
		Name:         name,
		Organization: organization,
		OrgType:      orgType,
		Contacts:     contacts,
		NotifyOptIn:  true,
		RegisteredAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logError("register", telegramID, err)
		return nil, fmt.Errorf("register participant: %w", err)
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn("participant cache write failed", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
	}

	s.log.Info("participant registered",
		slog.Int64("telegram_id", telegramID),
		slog.String("organization", organization),
		slog.String("org_type", orgType),
	)

	return p, nil
}

// ListNotifiable returns all participants that opted in to broadcasts.
func (s *Service) ListNotifiable(ctx context.Context) ([]*domain.Participant, error) {
	participants, err := s.repo.ListNotifiable(ctx)
	if err != nil {
		s.logError("list_notifiable", 0, err)
		return nil, fmt.Errorf("list notifiable participants: %w", err)
	}

	return participants, nil
}

func (s *Service) logError(operation string, telegramID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("participant service operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
