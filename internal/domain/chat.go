package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID          uuid.UUID           `json:"id"`
	GroupID     uuid.UUID           `json:"group_id"`
	SenderID    uuid.UUID           `json:"sender_id"`
	MessageType string              `json:"message_type"`
	Content     string              `json:"content"`
	ReplyTo     *uuid.UUID          `json:"reply_to,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	IsEdited    bool                `json:"is_edited"`
	CreatedAt   time.Time           `json:"created_at"`
	EditedAt    *time.Time          `json:"edited_at,omitempty"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
	DeletedBy   *uuid.UUID          `json:"deleted_by,omitempty"`
}

type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeFile   = "file"
	MessageTypePDF    = "pdf"
	MessageTypeSystem = "system"
)

// IsClientMessageType - типы, которые клиент может отправить сам (system создает только сервер)
func IsClientMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile, MessageTypePDF:
		return true
	}
	return false
}

// DeletedMessageNotice - текст "надгробия" удаленного сообщения
const DeletedMessageNotice = "This message was deleted"

// ToggleReaction добавляет userID в набор emoji или убирает, если он уже там.
// Пустые наборы удаляются из карты.
func ToggleReaction(reactions map[string][]string, emoji, userID string) map[string][]string {
	if reactions == nil {
		reactions = make(map[string][]string)
	}

	users := reactions[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(reactions, emoji)
			} else {
				reactions[emoji] = users
			}
			return reactions
		}
	}

	reactions[emoji] = append(users, userID)
	return reactions
}
