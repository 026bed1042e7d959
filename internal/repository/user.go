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

// UserRepository - только чтение профилей; регистрация и пароли живут в сервисе авторизации
type UserRepository interface {
	GetNameAndAvatar(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.UserProfile, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) GetNameAndAvatar(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	query := `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE id = $1 AND is_active = TRUE
	`

	profile := &domain.UserProfile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&profile.ID, &profile.Name, &profile.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user profile", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	return profile, nil
}

// GetProfiles загружает профили пачкой; отсутствующие пользователи просто не попадают в карту
func (r *userRepository) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.UserProfile, error) {
	profiles := make(map[uuid.UUID]*domain.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}

	query := `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE id = ANY($1::uuid[])
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		r.log.Error("Failed to get user profiles", "error", err)
		return nil, fmt.Errorf("failed to get user profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile := &domain.UserProfile{}
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.AvatarURL); err != nil {
			r.log.Error("Failed to scan user profile", "error", err)
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		profiles[profile.ID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user profiles: %w", err)
	}

	return profiles, nil
}
