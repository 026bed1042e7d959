package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"group_chat/internal/domain"
	"group_chat/pkg/logger"
)

// AuditRepository - журнал аудита только на запись
type AuditRepository interface {
	CreateLog(ctx context.Context, entry *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

// CreateLog заполняет entry.ID значением из базы
func (r *auditRepository) CreateLog(ctx context.Context, entry *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, actor_role, group_id, event_type, payload)
		VALUES (@event_time, @actor_user_id, @actor_role, @group_id, @event_type, @payload)
		RETURNING id
	`

	payload := entry.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	err := r.db.QueryRow(ctx, query, pgx.NamedArgs{
		"event_time":    entry.EventTime,
		"actor_user_id": entry.ActorUserID,
		"actor_role":    entry.ActorRole,
		"group_id":      entry.GroupID,
		"event_type":    entry.EventType,
		"payload":       payload,
	}).Scan(&entry.ID)
	if err != nil {
		r.log.Error("Failed to write audit entry", "error", err, "event_type", entry.EventType, "group_id", entry.GroupID)
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}
