package service

import (
	"context"
	"time"

	"group_chat/internal/domain"
	"group_chat/internal/repository"
	"group_chat/pkg/logger"
)

// AuditService пишет в журнал действия модераторов групп
type AuditService interface {
	RecordModeration(ctx context.Context, moderation *domain.Moderation) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) RecordModeration(ctx context.Context, moderation *domain.Moderation) error {
	moderatorID := moderation.ModeratorID
	groupID := moderation.GroupID

	entry := &domain.AuditLog{
		EventTime:   time.Now().UTC(),
		ActorUserID: &moderatorID,
		ActorRole:   moderation.ModeratorRole,
		GroupID:     &groupID,
		EventType:   domain.EventTypeMessageModerated,
		Payload: map[string]interface{}{
			"message_id":     moderation.MessageID.String(),
			"sender_id":      moderation.SenderID.String(),
			"message_type":   moderation.MessageType,
			"content_length": moderation.ContentLength,
			"sent_at":        moderation.SentAt.UTC().Format(time.RFC3339Nano),
		},
	}

	if err := s.auditRepo.CreateLog(ctx, entry); err != nil {
		return err
	}

	s.log.Info("Message moderated",
		"message_id", moderation.MessageID,
		"group_id", groupID,
		"moderator_id", moderatorID,
		"moderator_role", moderation.ModeratorRole,
		"audit_id", entry.ID,
	)
	return nil
}
