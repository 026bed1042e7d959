package domain

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AdminID   uuid.UUID `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership создается CRUD API, ядро только читает
type Membership struct {
	GroupID  uuid.UUID `json:"group_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// GroupAction - действие, которое проверяет AuthService.AuthorizeGroupAction
type GroupAction string

const (
	ActionJoin   GroupAction = "join"
	ActionSend   GroupAction = "send"
	ActionEdit   GroupAction = "edit"
	ActionDelete GroupAction = "delete"
	ActionReact  GroupAction = "react"
)
