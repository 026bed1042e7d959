package ws

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"group_chat/internal/config"
	"group_chat/internal/domain"
	"group_chat/internal/service"
	"group_chat/internal/session"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/logger"
)

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage)

// Manager ведет жизненный цикл соединений: подключение, вход в группы,
// обработку событий, отключение и вытеснение простаивающих.
type Manager struct {
	hub      *Hub
	sessions *session.Store
	presence *session.Presence
	auth     service.AuthService
	chat     service.ChatService
	lastSeen service.PresenceService
	cfg      config.RealtimeConfig
	log      logger.Logger

	handlers map[string]handlerFunc

	// связывает привязку пользователя со счетчиком присутствия,
	// чтобы конкурентное отключение не оставило лишний счетчик
	lifecycleMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(
	hub *Hub,
	sessions *session.Store,
	presence *session.Presence,
	auth service.AuthService,
	chat service.ChatService,
	lastSeen service.PresenceService,
	cfg config.RealtimeConfig,
	log logger.Logger,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		hub:      hub,
		sessions: sessions,
		presence: presence,
		auth:     auth,
		chat:     chat,
		lastSeen: lastSeen,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	m.handlers = map[string]handlerFunc{
		domain.EventJoinGroup:      m.handleJoinGroup,
		domain.EventSendMessage:    m.handleSendMessage,
		domain.EventEditMessage:    m.handleEditMessage,
		domain.EventDeleteMessage:  m.handleDeleteMessage,
		domain.EventReactToMessage: m.handleReactToMessage,
		domain.EventTyping:         m.handleTyping,
	}

	return m
}

// Serve регистрирует соединение и запускает его насосы чтения и записи
func (m *Manager) Serve(conn *websocket.Conn) string {
	// после начала Shutdown новые соединения не принимаются: wg.Add не должен гоняться с wg.Wait
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.ctx.Err() != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(m.cfg.WriteWait))
		_ = conn.Close()
		return ""
	}

	c := newClient(uuid.NewString(), conn, m.cfg.SendBuffer, m.log)

	if err := m.connect(c); err != nil {
		c.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return ""
	}

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		c.writePump(m.cfg)
	}()
	go func() {
		defer m.wg.Done()
		c.readPump(m.cfg,
			func() { m.sessions.Touch(c.id) },
			func(frame []byte) { m.dispatch(c, frame) },
		)
		m.Disconnect(c.id)
	}()

	return c.id
}

func (m *Manager) connect(c *Client) error {
	if err := m.sessions.Register(c.id); err != nil {
		return err
	}
	m.hub.Register(c)

	c.log.Debug("Connection registered")
	return nil
}

// Disconnect идемпотентен: обрыв чтения, вытеснение по простою и
// переполнение очереди могут прийти сюда одновременно.
func (m *Manager) Disconnect(connID string) {
	m.lifecycleMu.Lock()
	userID, ok := m.sessions.Remove(connID)
	if !ok {
		m.lifecycleMu.Unlock()
		return
	}
	m.hub.Unregister(connID)

	wentOffline := userID != "" && m.presence.Decrement(userID)
	if wentOffline {
		m.hub.EmitGlobal(domain.EventUserStatusUpdate, &domain.UserStatusPayload{UserID: userID, IsOnline: false})
	}
	remaining := m.presence.Count(userID)
	m.lifecycleMu.Unlock()

	m.log.Debug("Connection closed", "conn_id", connID, "user_id", userID, "user_connections", remaining)

	if wentOffline {
		m.recordLastSeen(userID)
	}
}

func (m *Manager) recordLastSeen(userID string) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	if err := m.lastSeen.MarkOffline(ctx, id); err != nil {
		m.log.Warn("Failed to record last seen", "error", err, "user_id", userID)
	}
}

// RunSweeper закрывает соединения без входящей активности дольше IdleTimeout.
// Блокирует до отмены ctx.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepIdle()
		}
	}
}

// ConnectionCount - число открытых соединений, включая еще не вошедшие в группы
func (m *Manager) ConnectionCount() int {
	return m.sessions.Len()
}

func (m *Manager) SweepIdle() int {
	idle := m.sessions.Idle(m.cfg.IdleTimeout)
	for _, connID := range idle {
		m.log.Info("Evicting idle connection", "conn_id", connID)
		m.Disconnect(connID)
	}
	return len(idle)
}

// Shutdown отключает все соединения и ждет завершения их насосов
func (m *Manager) Shutdown(ctx context.Context) error {
	m.lifecycleMu.Lock()
	m.cancel()
	m.lifecycleMu.Unlock()

	for _, connID := range m.hub.ConnectionIDs() {
		m.Disconnect(connID)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) dispatch(c *Client, frame []byte) {
	env, err := decodeEnvelope(frame)
	if err != nil || env.Type == "" {
		c.log.Debug("Malformed frame dropped", "error", err)
		return
	}

	handler, ok := m.handlers[env.Type]
	if !ok {
		c.log.Debug("Unknown event ignored", "event", env.Type)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Event handler panicked", "event", env.Type, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			m.hub.EmitToConnection(c.id, errorEventFor(env.Type), &domain.ErrorPayload{Reason: apperrors.ReasonInternal})
		}
	}()

	handler(ctx, c, env.Data)
}

func (m *Manager) handleJoinGroup(ctx context.Context, c *Client, data json.RawMessage) {
	var req domain.JoinGroupRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.emitError(c, domain.EventErrorJoiningGroup, apperrors.ReasonInvalidPayload)
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		m.emitError(c, domain.EventErrorJoiningGroup, apperrors.ReasonInvalidGroup)
		return
	}

	identity, err := m.auth.Authenticate(req.Credential)
	if err != nil {
		m.emitError(c, domain.EventAuthError, apperrors.Reason(err))
		return
	}
	userID := identity.UserID.String()

	if bound, ok := m.sessions.UserOf(c.id); ok && bound != userID {
		c.log.Warn("Credential for another user on bound connection", "bound_user", bound, "user_id", userID)
		m.emitError(c, domain.EventAuthError, apperrors.ReasonSessionMismatch)
		return
	}

	if err := m.auth.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionJoin, nil); err != nil {
		m.emitFailure(c, domain.EventErrorJoiningGroup, err)
		return
	}

	// подписка до снимка истории: сообщения, отправленные во время выборки,
	// придут обычной рассылкой (клиент убирает дубли по id)
	room := groupID.String()
	subscribed := m.hub.Subscribe(c.id, room)

	history, err := m.chat.History(ctx, groupID, m.cfg.HistoryLimit)
	if err != nil {
		if subscribed {
			m.hub.Unsubscribe(c.id, room)
		}
		c.log.Error("Failed to load history", "error", err, "group_id", room)
		m.emitFailure(c, domain.EventErrorJoiningGroup, err)
		return
	}

	if err := m.bindToRoom(c, userID, room); err != nil {
		if subscribed {
			m.hub.Unsubscribe(c.id, room)
		}
		if errors.Is(err, session.ErrUserMismatch) {
			m.emitError(c, domain.EventAuthError, apperrors.ReasonSessionMismatch)
		}
		return
	}

	m.hub.EmitToConnection(c.id, domain.EventJoinedGroup, &domain.JoinedGroupPayload{
		GroupID:  room,
		Messages: history,
	})

	c.log.Debug("Joined group", "group_id", room, "user_id", userID,
		"history", len(history), "room_size", m.hub.RoomSize(room))
}

// bindToRoom фиксирует вход в сессии и учитывает соединение в присутствии
// при первой привязке пользователя
func (m *Manager) bindToRoom(c *Client, userID, room string) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	firstBind, err := m.sessions.BindUser(c.id, userID)
	if err != nil {
		return err
	}
	if _, err := m.sessions.JoinRoom(c.id, room); err != nil {
		return err
	}

	if firstBind && m.presence.Increment(userID) {
		m.hub.EmitGlobal(domain.EventUserStatusUpdate, &domain.UserStatusPayload{UserID: userID, IsOnline: true})
	}
	return nil
}

func (m *Manager) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var req domain.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.emitError(c, domain.EventMessageError, apperrors.ReasonInvalidPayload)
		return
	}

	if _, err := m.chat.SendMessage(ctx, &req); err != nil {
		m.emitFailure(c, domain.EventMessageError, err)
	}
}

func (m *Manager) handleEditMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var req domain.EditMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.emitError(c, domain.EventMessageError, apperrors.ReasonInvalidPayload)
		return
	}

	if _, err := m.chat.EditMessage(ctx, &req); err != nil {
		m.emitFailure(c, domain.EventMessageError, err)
	}
}

func (m *Manager) handleDeleteMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var req domain.DeleteMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.emitError(c, domain.EventMessageError, apperrors.ReasonInvalidPayload)
		return
	}

	if _, err := m.chat.DeleteMessage(ctx, &req); err != nil {
		m.emitFailure(c, domain.EventMessageError, err)
	}
}

func (m *Manager) handleReactToMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var req domain.ReactToMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.emitError(c, domain.EventMessageError, apperrors.ReasonInvalidPayload)
		return
	}

	if _, err := m.chat.ReactToMessage(ctx, &req); err != nil {
		m.emitFailure(c, domain.EventMessageError, err)
	}
}

// handleTyping ничего не сохраняет; событие от соединения вне комнаты игнорируется
func (m *Manager) handleTyping(_ context.Context, c *Client, data json.RawMessage) {
	var req domain.TypingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	userID, ok := m.sessions.UserOf(c.id)
	if !ok || !m.sessions.InRoom(c.id, req.GroupID) {
		return
	}

	m.hub.EmitToRoomExcept(req.GroupID, c.id, domain.EventUserTyping, &domain.UserTypingPayload{
		UserID:   userID,
		IsTyping: req.IsTyping,
		GroupID:  req.GroupID,
	})
}

// emitFailure отправляет ошибку только запросившему соединению.
// Ошибки токена уходят отдельным событием authError.
func (m *Manager) emitFailure(c *Client, event string, err error) {
	reason := apperrors.Reason(err)

	switch apperrors.KindOf(err) {
	case apperrors.KindAuth:
		event = domain.EventAuthError
	case apperrors.KindPersistence, 0:
		c.log.Error("Event failed", "event", event, "error", err)
	default:
		c.log.Debug("Event rejected", "event", event, "reason", reason)
	}

	m.emitError(c, event, reason)
}

func (m *Manager) emitError(c *Client, event, reason string) {
	m.hub.EmitToConnection(c.id, event, &domain.ErrorPayload{Reason: reason})
}

func errorEventFor(event string) string {
	if event == domain.EventJoinGroup {
		return domain.EventErrorJoiningGroup
	}
	return domain.EventMessageError
}
