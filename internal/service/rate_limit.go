package service

import (
	"context"
	"time"

	"group_chat/internal/repository"
	"group_chat/pkg/logger"
)

type RateLimitService interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// Allow учитывает попытку и сообщает, укладывается ли она в лимит окна.
	// При недоступном Redis пропускает запрос.
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return s.rateLimitRepo.CheckLimit(ctx, key, limit, window)
}

func (s *rateLimitService) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.rateLimitRepo.Increment(ctx, key, window)
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	count, err := s.rateLimitRepo.Increment(ctx, key, window)
	if err != nil {
		s.log.Warn("Rate limit check failed, allowing request", "error", err, "key", key)
		return true
	}
	return count <= int64(limit)
}
