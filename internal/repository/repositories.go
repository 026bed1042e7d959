package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"group_chat/pkg/logger"
)

type Repositories struct {
	Chat       ChatRepository
	Membership MembershipRepository
	User       UserRepository
	Audit      AuditRepository
	RateLimit  RateLimitRepository
	Presence   PresenceRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Chat:       NewChatRepository(db, log),
		Membership: NewMembershipRepository(db, log),
		User:       NewUserRepository(db, log),
		Audit:      NewAuditRepository(db, log),
		RateLimit:  NewRateLimitRepository(redis, log),
		Presence:   NewPresenceRepository(redis, log),
	}

	log.Info("Repositories initialized")

	return repos
}
