// Package repotest содержит in-memory реализации репозиториев для тестов сервисов и websocket-слоя.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"group_chat/internal/domain"
	"group_chat/internal/repository"
	apperrors "group_chat/pkg/errors"
)

// Store - общее состояние всех in-memory репозиториев
type Store struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*domain.ChatMessage
	members  map[uuid.UUID]map[uuid.UUID]string
	admins   map[uuid.UUID]uuid.UUID
	users    map[uuid.UUID]*domain.UserProfile
	audit    []*domain.AuditLog
	counters map[string]int64
	lastSeen map[uuid.UUID]time.Time
	seq      map[uuid.UUID]int64

	failNext map[string]error
}

func NewStore() *Store {
	return &Store{
		messages: make(map[uuid.UUID]*domain.ChatMessage),
		members:  make(map[uuid.UUID]map[uuid.UUID]string),
		admins:   make(map[uuid.UUID]uuid.UUID),
		users:    make(map[uuid.UUID]*domain.UserProfile),
		counters: make(map[string]int64),
		lastSeen: make(map[uuid.UUID]time.Time),
		seq:      make(map[uuid.UUID]int64),
		failNext: make(map[string]error),
	}
}

// Операции, для которых можно подставить ошибку через FailNext
const (
	OpInsert            = "insert"
	OpFindRecentByGroup = "find_recent"
	OpExists            = "exists"
	OpIncrement         = "increment"
)

// FailNext заставляет следующий вызов операции op вернуть err
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *Store) takeFailure(op string) error {
	err, ok := s.failNext[op]
	if !ok {
		return nil
	}
	delete(s.failNext, op)
	return err
}

// AddGroup создает группу с админом; админ сразу становится участником
func (s *Store) AddGroup(groupID, adminID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[groupID] = adminID
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[uuid.UUID]string)
	}
	s.members[groupID][adminID] = domain.MemberRoleAdmin
}

func (s *Store) AddMember(groupID, userID uuid.UUID) {
	s.AddMemberWithRole(groupID, userID, domain.MemberRoleMember)
}

func (s *Store) AddMemberWithRole(groupID, userID uuid.UUID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[uuid.UUID]string)
	}
	s.members[groupID][userID] = role
}

func (s *Store) RemoveMember(groupID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[groupID], userID)
}

func (s *Store) AddUser(userID uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &domain.UserProfile{ID: userID, Name: name}
}

// PutMessage кладет сообщение напрямую, минуя сервис
func (s *Store) PutMessage(m *domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	s.seq[m.ID] = int64(len(s.seq) + 1)
}

// Message возвращает копию строки, включая удаленные
func (s *Store) Message(id uuid.UUID) (domain.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.ChatMessage{}, false
	}
	return *m, true
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) AuditLogs() []*domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuditLog(nil), s.audit...)
}

func (s *Store) Chat() *ChatRepository             { return &ChatRepository{s} }
func (s *Store) Membership() *MembershipRepository { return &MembershipRepository{s} }
func (s *Store) Users() *UserRepository            { return &UserRepository{s} }
func (s *Store) Audit() *AuditRepository           { return &AuditRepository{s} }
func (s *Store) RateLimit() *RateLimitRepository   { return &RateLimitRepository{s} }
func (s *Store) Presence() *PresenceRepository     { return &PresenceRepository{s} }

var (
	_ repository.ChatRepository       = (*ChatRepository)(nil)
	_ repository.MembershipRepository = (*MembershipRepository)(nil)
	_ repository.UserRepository       = (*UserRepository)(nil)
	_ repository.AuditRepository      = (*AuditRepository)(nil)
	_ repository.RateLimitRepository  = (*RateLimitRepository)(nil)
	_ repository.PresenceRepository   = (*PresenceRepository)(nil)
)

type ChatRepository struct{ s *Store }

func (r *ChatRepository) Insert(ctx context.Context, message *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(OpInsert); err != nil {
		return err
	}
	cp := *message
	r.s.messages[message.ID] = &cp
	r.s.seq[message.ID] = int64(len(r.s.seq) + 1)
	return nil
}

func (r *ChatRepository) FindByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[messageID]
	if !ok || m.DeletedAt != nil {
		return nil, apperrors.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *ChatRepository) UpdateContent(ctx context.Context, messageID uuid.UUID, content string) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[messageID]
	if !ok || m.DeletedAt != nil {
		return time.Time{}, apperrors.ErrMessageNotFound
	}
	now := time.Now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return now, nil
}

func (r *ChatRepository) DeleteByID(ctx context.Context, messageID, deletedBy uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[messageID]
	if !ok || m.DeletedAt != nil {
		return apperrors.ErrMessageNotFound
	}
	now := time.Now()
	m.DeletedAt = &now
	m.DeletedBy = &deletedBy
	m.Content = domain.DeletedMessageNotice
	m.MessageType = domain.MessageTypeText
	m.Attachments = nil
	return nil
}

func (r *ChatRepository) FindRecentByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(OpFindRecentByGroup); err != nil {
		return nil, err
	}

	var result []*domain.ChatMessage
	for _, m := range r.s.messages {
		if m.GroupID == groupID && m.DeletedAt == nil {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return r.s.seq[result[i].ID] > r.s.seq[result[j].ID]
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ChatRepository) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (map[string][]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[messageID]
	if !ok || m.DeletedAt != nil {
		return nil, apperrors.ErrMessageNotFound
	}
	m.Reactions = domain.ToggleReaction(m.Reactions, emoji, userID.String())

	cp := make(map[string][]string, len(m.Reactions))
	for k, v := range m.Reactions {
		cp[k] = append([]string(nil), v...)
	}
	return cp, nil
}

type MembershipRepository struct{ s *Store }

func (r *MembershipRepository) Exists(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(OpExists); err != nil {
		return false, err
	}
	_, ok := r.s.members[groupID][userID]
	return ok, nil
}

func (r *MembershipRepository) GetGroupAdmin(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	adminID, ok := r.s.admins[groupID]
	if !ok {
		return uuid.Nil, apperrors.ErrGroupNotFound
	}
	return adminID, nil
}

func (r *MembershipRepository) GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*domain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.members[groupID][userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &domain.Membership{GroupID: groupID, UserID: userID, Role: role}, nil
}

type UserRepository struct{ s *Store }

func (r *UserRepository) GetNameAndAvatar(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profiles := make(map[uuid.UUID]*domain.UserProfile, len(userIDs))
	for _, id := range userIDs {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			profiles[id] = &cp
		}
	}
	return profiles, nil
}

type AuditRepository struct{ s *Store }

func (r *AuditRepository) CreateLog(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = int64(len(r.s.audit) + 1)
	r.s.audit = append(r.s.audit, log)
	return nil
}

type RateLimitRepository struct{ s *Store }

func (r *RateLimitRepository) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.counters[key] < int64(limit), nil
}

// Increment не истекает по времени: в тестах окно бесконечно
func (r *RateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(OpIncrement); err != nil {
		return 0, err
	}
	r.s.counters[key]++
	return r.s.counters[key], nil
}

type PresenceRepository struct{ s *Store }

func (r *PresenceRepository) SetLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastSeen[userID] = at
	return nil
}

func (r *PresenceRepository) GetLastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	at, ok := r.s.lastSeen[userID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}
