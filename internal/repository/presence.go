package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"group_chat/pkg/logger"
)

const (
	// Префикс ключа времени последнего присутствия
	LastSeenKeyPrefix = "presence:lastseen:%s"

	LastSeenTTL = 30 * 24 * time.Hour
)

// PresenceRepository хранит время ухода пользователя в офлайн.
// Сам счетчик соединений живет в памяти процесса (session.Presence).
type PresenceRepository interface {
	SetLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error
	GetLastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error)
}

type presenceRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPresenceRepository(rdb *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{rdb: rdb, log: log}
}

func (r *presenceRepository) key(userID uuid.UUID) string {
	return fmt.Sprintf(LastSeenKeyPrefix, userID.String())
}

func (r *presenceRepository) SetLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	err := r.rdb.Set(ctx, r.key(userID), at.UTC().Format(time.RFC3339Nano), LastSeenTTL).Err()
	if err != nil {
		r.log.Error("Failed to store last seen", "error", err, "user_id", userID)
		return fmt.Errorf("failed to store last seen: %w", err)
	}
	return nil
}

// GetLastSeen возвращает nil, если пользователь ни разу не уходил в офлайн
func (r *presenceRepository) GetLastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	value, err := r.rdb.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to get last seen", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get last seen: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		r.log.Warn("Malformed last seen value", "user_id", userID, "value", value)
		return nil, nil
	}
	return &at, nil
}
