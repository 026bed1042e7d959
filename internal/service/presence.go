package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"group_chat/internal/domain"
	"group_chat/internal/repository"
	"group_chat/pkg/logger"
)

// OnlineChecker - источник текущего присутствия (счетчик соединений в памяти)
type OnlineChecker interface {
	IsOnline(userID string) bool
}

type PresenceService interface {
	MarkOffline(ctx context.Context, userID uuid.UUID) error
	GetPresence(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error)
}

type presenceService struct {
	presenceRepo repository.PresenceRepository
	online       OnlineChecker
	log          logger.Logger
}

func NewPresenceService(presenceRepo repository.PresenceRepository, online OnlineChecker, log logger.Logger) PresenceService {
	return &presenceService{
		presenceRepo: presenceRepo,
		online:       online,
		log:          log,
	}
}

// MarkOffline запоминает момент, когда закрылось последнее соединение пользователя
func (s *presenceService) MarkOffline(ctx context.Context, userID uuid.UUID) error {
	return s.presenceRepo.SetLastSeen(ctx, userID, time.Now())
}

func (s *presenceService) GetPresence(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	presence := &domain.UserPresence{
		UserID:   userID,
		IsOnline: s.online.IsOnline(userID.String()),
	}
	if presence.IsOnline {
		return presence, nil
	}

	lastSeen, err := s.presenceRepo.GetLastSeen(ctx, userID)
	if err != nil {
		return nil, err
	}
	presence.LastSeen = lastSeen
	return presence, nil
}
