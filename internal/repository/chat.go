package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"group_chat/internal/domain"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/logger"
)

type ChatRepository interface {
	Insert(ctx context.Context, message *domain.ChatMessage) error
	FindByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error)
	UpdateContent(ctx context.Context, messageID uuid.UUID, content string) (time.Time, error)
	DeleteByID(ctx context.Context, messageID, deletedBy uuid.UUID) error
	FindRecentByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (map[string][]string, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

const messageColumns = `id, group_id, sender_id, message_type, content, reply_to, reactions, attachments,
		       is_edited, created_at, edited_at`

func (r *chatRepository) Insert(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, group_id, sender_id, message_type, content, reply_to, reactions, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	// jsonb-колонки NOT NULL, nil сериализуется в null
	reactions := message.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	attachments := message.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}

	err := r.db.QueryRow(ctx, query,
		message.ID, message.GroupID, message.SenderID, message.MessageType,
		message.Content, message.ReplyTo, reactions, attachments, message.CreatedAt,
	).Scan(&message.CreatedAt)

	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "group_id", message.GroupID)
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// FindByID не возвращает удаленные сообщения
func (r *chatRepository) FindByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE id = $1 AND deleted_at IS NULL
	`

	message, err := scanMessage(r.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", messageID)
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

func (r *chatRepository) UpdateContent(ctx context.Context, messageID uuid.UUID, content string) (time.Time, error) {
	query := `
		UPDATE chat_messages
		SET content = $2, is_edited = TRUE, edited_at = $3
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING edited_at
	`

	var editedAt time.Time
	err := r.db.QueryRow(ctx, query, messageID, content, time.Now()).Scan(&editedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to update message", "error", err, "message_id", messageID)
		return time.Time{}, fmt.Errorf("failed to update message: %w", err)
	}

	return editedAt, nil
}

// DeleteByID - мягкое удаление одним условным UPDATE.
// Из двух конкурентных удалений успешно только одно, второе получает ErrMessageNotFound.
func (r *chatRepository) DeleteByID(ctx context.Context, messageID, deletedBy uuid.UUID) error {
	query := `
		UPDATE chat_messages
		SET deleted_at = $2, deleted_by = $3, content = $4, message_type = $5, attachments = '[]'::jsonb
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, messageID, time.Now(), deletedBy,
		domain.DeletedMessageNotice, domain.MessageTypeText)
	if err != nil {
		r.log.Error("Failed to delete message", "error", err, "message_id", messageID)
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

// FindRecentByGroup возвращает последние limit сообщений, от новых к старым
func (r *chatRepository) FindRecentByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE group_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, groupID, limit)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "group_id", groupID)
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0, limit)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// ToggleReaction добавляет или снимает реакцию пользователя под блокировкой строки
func (r *chatRepository) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (map[string][]string, error) {
	var reactions map[string][]string

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT reactions FROM chat_messages
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, messageID).Scan(&reactions)
		if err != nil {
			return err
		}

		reactions = domain.ToggleReaction(reactions, emoji, userID.String())

		_, err = tx.Exec(ctx, `UPDATE chat_messages SET reactions = $2 WHERE id = $1`, messageID, reactions)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to toggle reaction", "error", err, "message_id", messageID)
		return nil, fmt.Errorf("failed to toggle reaction: %w", err)
	}

	return reactions, nil
}

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	message := &domain.ChatMessage{}
	err := row.Scan(
		&message.ID, &message.GroupID, &message.SenderID, &message.MessageType,
		&message.Content, &message.ReplyTo, &message.Reactions, &message.Attachments,
		&message.IsEdited, &message.CreatedAt, &message.EditedAt,
	)
	if err != nil {
		return nil, err
	}
	return message, nil
}
