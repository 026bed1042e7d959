package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"group_chat/internal/domain"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/logger"
)

// MembershipRepository - чтение членства в группах. Строки создает CRUD API.
type MembershipRepository interface {
	Exists(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
	GetGroupAdmin(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error)
	GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*domain.Membership, error)
}

type membershipRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMembershipRepository(db *pgxpool.Pool, log logger.Logger) MembershipRepository {
	return &membershipRepository{db: db, log: log}
}

func (r *membershipRepository) Exists(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM group_members WHERE user_id = $1 AND group_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, groupID).Scan(&exists); err != nil {
		r.log.Error("Failed to check membership", "error", err, "user_id", userID, "group_id", groupID)
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

func (r *membershipRepository) GetGroupAdmin(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error) {
	query := `SELECT admin_id FROM groups WHERE id = $1`

	var adminID uuid.UUID
	err := r.db.QueryRow(ctx, query, groupID).Scan(&adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperrors.ErrGroupNotFound
		}
		r.log.Error("Failed to get group admin", "error", err, "group_id", groupID)
		return uuid.Nil, fmt.Errorf("failed to get group admin: %w", err)
	}

	return adminID, nil
}

func (r *membershipRepository) GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE user_id = $1 AND group_id = $2
	`

	m := &domain.Membership{}
	err := r.db.QueryRow(ctx, query, userID, groupID).Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get membership", "error", err, "user_id", userID, "group_id", groupID)
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}
