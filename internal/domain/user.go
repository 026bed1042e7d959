package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile - денормализуемые в сообщения данные отправителя
type UserProfile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}

func (p *UserProfile) Avatar() string {
	if p == nil || p.AvatarURL == nil {
		return ""
	}
	return *p.AvatarURL
}

// Identity - результат проверки токена сессии
type Identity struct {
	UserID       uuid.UUID
	IsSuperAdmin bool
}

// UserPresence - ответ REST-эндпоинта присутствия
type UserPresence struct {
	UserID   uuid.UUID  `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
