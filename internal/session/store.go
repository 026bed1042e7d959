package session

import (
	"sync"
	"time"
)

// Connection - состояние одного живого соединения
type Connection struct {
	ID           string
	UserID       string // пусто до первого успешного входа в группу
	Rooms        map[string]struct{}
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Store - реестр живых соединений процесса.
// Все операции синхронные и не держат блокировку дольше изменения карты.
type Store struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		conns: make(map[string]*Connection),
		now:   time.Now,
	}
}

// NewStoreWithClock нужен тестам простоя
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

func (s *Store) Register(connID string) error {
	if connID == "" {
		return ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conns[connID]; exists {
		return ErrAlreadyRegistered
	}

	now := s.now()
	s.conns[connID] = &Connection{
		ID:           connID,
		Rooms:        make(map[string]struct{}),
		ConnectedAt:  now,
		LastActivity: now,
	}
	return nil
}

// BindUser привязывает пользователя к соединению.
// Возвращает true только при первой привязке; повторная привязка того же пользователя - no-op.
func (s *Store) BindUser(connID, userID string) (bool, error) {
	if userID == "" {
		return false, ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return false, ErrUnknownConnection
	}
	switch conn.UserID {
	case "":
		conn.UserID = userID
		return true, nil
	case userID:
		return false, nil
	default:
		return false, ErrUserMismatch
	}
}

// JoinRoom добавляет комнату; набор комнат только растет до отключения
func (s *Store) JoinRoom(connID, roomID string) (bool, error) {
	if roomID == "" {
		return false, ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return false, ErrUnknownConnection
	}
	if _, joined := conn.Rooms[roomID]; joined {
		return false, nil
	}
	conn.Rooms[roomID] = struct{}{}
	return true, nil
}

// Touch обновляет время последней активности, false если соединение неизвестно
func (s *Store) Touch(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return false
	}
	conn.LastActivity = s.now()
	return true
}

// Remove удаляет соединение и возвращает привязанного пользователя (пусто, если не был привязан).
// ok == false, если соединение уже удалено: повторный вызов безопасен.
func (s *Store) Remove(connID string) (userID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, exists := s.conns[connID]
	if !exists {
		return "", false
	}
	delete(s.conns, connID)
	return conn.UserID, true
}

func (s *Store) UserOf(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[connID]
	if !ok || conn.UserID == "" {
		return "", false
	}
	return conn.UserID, true
}

func (s *Store) InRoom(connID, roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[connID]
	if !ok {
		return false
	}
	_, joined := conn.Rooms[roomID]
	return joined
}

// Idle возвращает соединения, неактивные дольше threshold
func (s *Store) Idle(threshold time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-threshold)
	var idle []string
	for id, conn := range s.conns {
		if conn.LastActivity.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
