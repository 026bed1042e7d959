package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	GroupID     *uuid.UUID             `json:"group_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

// Роли модератора в журнале
const (
	ActorRoleGroupAdmin = "group_admin"
	ActorRoleSuperAdmin = "super_admin"
)

const EventTypeMessageModerated = "MESSAGE_MODERATED"

// Moderation - удаление чужого сообщения. Текст сообщения в журнал не попадает.
type Moderation struct {
	MessageID     uuid.UUID
	GroupID       uuid.UUID
	SenderID      uuid.UUID
	ModeratorID   uuid.UUID
	ModeratorRole string
	MessageType   string
	ContentLength int
	SentAt        time.Time
}
