package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"group_chat/internal/config"
	"group_chat/internal/domain"
	"group_chat/internal/repository"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/logger"
)

// Broadcaster - доставка событий подписчикам комнаты
type Broadcaster interface {
	EmitToRoom(roomID, event string, payload interface{})
}

// ChatService создает, редактирует и удаляет сообщения группы и рассылает результат в комнату.
// Ошибки возвращаются только вызывающему, в комнату ничего не уходит.
type ChatService interface {
	SendMessage(ctx context.Context, req *domain.SendMessageRequest) (*domain.WireMessage, error)
	EditMessage(ctx context.Context, req *domain.EditMessageRequest) (*domain.MessageEditedPayload, error)
	DeleteMessage(ctx context.Context, req *domain.DeleteMessageRequest) (*domain.MessageDeletedPayload, error)
	ReactToMessage(ctx context.Context, req *domain.ReactToMessageRequest) (*domain.MessageReactionPayload, error)
	// History возвращает последние сообщения группы в хронологическом порядке
	History(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.WireMessage, error)
}

type chatService struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	auth        AuthService
	audit       AuditService
	rateLimit   RateLimitService
	broadcaster Broadcaster
	realtime    config.RealtimeConfig
	limits      config.RateLimitConfig
	log         logger.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	auth AuthService,
	audit AuditService,
	rateLimit RateLimitService,
	broadcaster Broadcaster,
	cfg *config.Config,
	log logger.Logger,
) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		auth:        auth,
		audit:       audit,
		rateLimit:   rateLimit,
		broadcaster: broadcaster,
		realtime:    cfg.Realtime,
		limits:      cfg.RateLimit,
		log:         log,
	}
}

func (s *chatService) SendMessage(ctx context.Context, req *domain.SendMessageRequest) (*domain.WireMessage, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidGroup)
	}

	content := strings.TrimSpace(req.Content)
	if err := s.validateAttachments(req.Attachments); err != nil {
		return nil, err
	}
	if content == "" && len(req.Attachments) == 0 {
		return nil, apperrors.Validation(apperrors.ReasonEmptyContent)
	}
	if utf8.RuneCountInString(content) > s.realtime.MaxContentLength {
		return nil, apperrors.Validation(apperrors.ReasonTooLong)
	}

	messageType := req.Type
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	if !domain.IsClientMessageType(messageType) {
		return nil, apperrors.Validation(apperrors.ReasonInvalidType)
	}

	var replyTo *uuid.UUID
	if req.ReplyTo != "" {
		id, err := uuid.Parse(req.ReplyTo)
		if err != nil {
			return nil, apperrors.Validation(apperrors.ReasonInvalidReply)
		}
		replyTo = &id
	}

	identity, err := s.auth.Authenticate(req.Credential)
	if err != nil {
		return nil, err
	}
	if err := s.auth.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionSend, nil); err != nil {
		return nil, err
	}

	if !s.rateLimit.Allow(ctx, sendRateKey(identity.UserID), s.limits.Messages, s.limits.Window) {
		return nil, apperrors.RateLimited()
	}

	// ответ должен ссылаться на живое сообщение той же группы
	if replyTo != nil {
		parent, err := s.chatRepo.FindByID(ctx, *replyTo)
		if err != nil {
			if errors.Is(err, apperrors.ErrMessageNotFound) {
				return nil, apperrors.Validation(apperrors.ReasonInvalidReply)
			}
			return nil, apperrors.Persistence(err)
		}
		if parent.GroupID != groupID {
			return nil, apperrors.Validation(apperrors.ReasonInvalidReply)
		}
	}

	sender, err := s.userRepo.GetNameAndAvatar(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonSenderNotFound, err)
		}
		return nil, apperrors.Persistence(err)
	}

	message := &domain.ChatMessage{
		ID:          uuid.New(),
		GroupID:     groupID,
		SenderID:    identity.UserID,
		MessageType: messageType,
		Content:     content,
		ReplyTo:     replyTo,
		Attachments: req.Attachments,
		CreatedAt:   time.Now(),
	}

	if err := s.chatRepo.Insert(ctx, message); err != nil {
		return nil, apperrors.Persistence(err)
	}

	wire := domain.NewWireMessage(message, sender)
	s.broadcaster.EmitToRoom(groupID.String(), domain.EventReceiveMessage, wire)

	s.log.Debug("Message sent", "message_id", message.ID, "group_id", groupID, "sender_id", identity.UserID)

	return wire, nil
}

func (s *chatService) EditMessage(ctx context.Context, req *domain.EditMessageRequest) (*domain.MessageEditedPayload, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidGroup)
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidMessage)
	}

	content := strings.TrimSpace(req.NewContent)
	if content == "" {
		return nil, apperrors.Validation(apperrors.ReasonEmptyContent)
	}
	if utf8.RuneCountInString(content) > s.realtime.MaxContentLength {
		return nil, apperrors.Validation(apperrors.ReasonTooLong)
	}

	identity, err := s.auth.Authenticate(req.Credential)
	if err != nil {
		return nil, err
	}

	message, err := s.loadGroupMessage(ctx, messageID, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionEdit, message); err != nil {
		return nil, err
	}

	if _, err := s.chatRepo.UpdateContent(ctx, messageID, content); err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonNotFound, err)
		}
		return nil, apperrors.Persistence(err)
	}

	payload := &domain.MessageEditedPayload{
		MessageID:  messageID.String(),
		NewContent: content,
		IsEdited:   true,
	}
	s.broadcaster.EmitToRoom(groupID.String(), domain.EventMessageEdited, payload)

	return payload, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, req *domain.DeleteMessageRequest) (*domain.MessageDeletedPayload, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidGroup)
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidMessage)
	}

	identity, err := s.auth.Authenticate(req.Credential)
	if err != nil {
		return nil, err
	}

	message, err := s.loadGroupMessage(ctx, messageID, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionDelete, message); err != nil {
		return nil, err
	}

	// условный UPDATE: из двух конкурентных удалений проходит одно
	if err := s.chatRepo.DeleteByID(ctx, messageID, identity.UserID); err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonNotFound, err)
		}
		return nil, apperrors.Persistence(err)
	}

	if message.SenderID != identity.UserID {
		s.auditModeration(ctx, identity, message)
	}

	deleter, err := s.userRepo.GetNameAndAvatar(ctx, identity.UserID)
	if err != nil {
		s.log.Warn("Failed to resolve deleter profile", "error", err, "user_id", identity.UserID)
		deleter = &domain.UserProfile{ID: identity.UserID}
	}

	// системное сообщение не сохраняется, это только уведомление комнате
	system := &domain.ChatMessage{
		ID:          uuid.New(),
		GroupID:     groupID,
		SenderID:    identity.UserID,
		MessageType: domain.MessageTypeSystem,
		Content:     deletionNotice(deleter),
		CreatedAt:   time.Now(),
	}

	payload := &domain.MessageDeletedPayload{
		MessageID:     messageID.String(),
		SystemMessage: domain.NewWireMessage(system, deleter),
	}
	s.broadcaster.EmitToRoom(groupID.String(), domain.EventMessageDeleted, payload)

	return payload, nil
}

func (s *chatService) ReactToMessage(ctx context.Context, req *domain.ReactToMessageRequest) (*domain.MessageReactionPayload, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidGroup)
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, apperrors.Validation(apperrors.ReasonInvalidMessage)
	}

	emoji := strings.TrimSpace(req.Emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return nil, apperrors.Validation(apperrors.ReasonInvalidPayload)
	}

	identity, err := s.auth.Authenticate(req.Credential)
	if err != nil {
		return nil, err
	}
	if err := s.auth.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionReact, nil); err != nil {
		return nil, err
	}

	if _, err := s.loadGroupMessage(ctx, messageID, groupID); err != nil {
		return nil, err
	}

	reactions, err := s.chatRepo.ToggleReaction(ctx, messageID, identity.UserID, emoji)
	if err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonNotFound, err)
		}
		return nil, apperrors.Persistence(err)
	}

	payload := &domain.MessageReactionPayload{
		MessageID: messageID.String(),
		GroupID:   groupID.String(),
		Reactions: reactions,
	}
	s.broadcaster.EmitToRoom(groupID.String(), domain.EventMessageReaction, payload)

	return payload, nil
}

func (s *chatService) History(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.WireMessage, error) {
	if limit <= 0 || limit > s.realtime.HistoryLimit {
		limit = s.realtime.HistoryLimit
	}

	messages, err := s.chatRepo.FindRecentByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	senderIDs := make([]uuid.UUID, 0, len(messages))
	seen := make(map[uuid.UUID]struct{}, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		senderIDs = append(senderIDs, m.SenderID)
	}

	profiles, err := s.userRepo.GetProfiles(ctx, senderIDs)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	// из хранилища приходят от новых к старым
	history := make([]*domain.WireMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		history = append(history, domain.NewWireMessage(m, profiles[m.SenderID]))
	}

	return history, nil
}

// loadGroupMessage загружает сообщение и проверяет, что оно принадлежит группе запроса
func (s *chatService) loadGroupMessage(ctx context.Context, messageID, groupID uuid.UUID) (*domain.ChatMessage, error) {
	message, err := s.chatRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, apperrors.NotFound(apperrors.ReasonNotFound, err)
		}
		return nil, apperrors.Persistence(err)
	}
	if message.GroupID != groupID {
		return nil, apperrors.NotFound(apperrors.ReasonNotFound, apperrors.ErrMessageNotFound)
	}
	return message, nil
}

func (s *chatService) validateAttachments(attachments []domain.Attachment) error {
	if len(attachments) > s.realtime.MaxAttachments {
		return apperrors.Validation(apperrors.ReasonInvalidPayload)
	}
	for _, a := range attachments {
		if strings.TrimSpace(a.URL) == "" || a.Size < 0 {
			return apperrors.Validation(apperrors.ReasonInvalidPayload)
		}
	}
	return nil
}

func (s *chatService) auditModeration(ctx context.Context, identity *domain.Identity, message *domain.ChatMessage) {
	// не автор прошел проверку прав: значит админ группы или супер-админ
	role := domain.ActorRoleGroupAdmin
	if identity.IsSuperAdmin {
		role = domain.ActorRoleSuperAdmin
	}

	err := s.audit.RecordModeration(ctx, &domain.Moderation{
		MessageID:     message.ID,
		GroupID:       message.GroupID,
		SenderID:      message.SenderID,
		ModeratorID:   identity.UserID,
		ModeratorRole: role,
		MessageType:   message.MessageType,
		ContentLength: utf8.RuneCountInString(message.Content),
		SentAt:        message.CreatedAt,
	})
	if err != nil {
		s.log.Error("Failed to write moderation audit log", "error", err, "message_id", message.ID)
	}
}

const maxEmojiRunes = 16

func sendRateKey(userID uuid.UUID) string {
	return fmt.Sprintf("rate:send:%s", userID.String())
}

func deletionNotice(deleter *domain.UserProfile) string {
	if deleter == nil || deleter.Name == "" {
		return "A message was deleted"
	}
	return deleter.Name + " deleted a message"
}
