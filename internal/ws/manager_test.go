package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"group_chat/internal/config"
	"group_chat/internal/domain"
	"group_chat/internal/repository/repotest"
	"group_chat/internal/service"
	"group_chat/internal/session"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/jwt"
	"group_chat/pkg/logger"
)

const testSecret = "ws-test-secret"

type testEnv struct {
	store   *repotest.Store
	manager *Manager
	hub     *Hub
	tracker *session.Presence
	server  *httptest.Server
	clock   *testClock
	cfg     *config.Config

	group uuid.UUID
	alice uuid.UUID
	bob   uuid.UUID
	admin uuid.UUID
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testSecret},
		Realtime: config.RealtimeConfig{
			IdleTimeout:      2 * time.Minute,
			SweepInterval:    time.Minute,
			HistoryLimit:     50,
			MaxContentLength: 1000,
			MaxAttachments:   10,
			SendBuffer:       64,
			WriteWait:        5 * time.Second,
			PongWait:         time.Minute,
			MaxFrameBytes:    64 * 1024,
			RequestTimeout:   5 * time.Second,
		},
		RateLimit: config.RateLimitConfig{Messages: 1000, Window: time.Minute},
	}
}

func newTestEnv(t *testing.T, wrapChat func(service.ChatService) service.ChatService) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testConfig(), wrapChat, nil)
}

// newTestEnvWith позволяет задать конфиг и часы сессий; при now == nil используется testClock
func newTestEnvWith(t *testing.T, cfg *config.Config, wrapChat func(service.ChatService) service.ChatService, now func() time.Time) *testEnv {
	t.Helper()

	log := logger.NewNop()
	store := repotest.NewStore()
	clock := &testClock{now: time.Now()}
	if now == nil {
		now = clock.Now
	}

	env := &testEnv{
		store: store,
		clock: clock,
		cfg:   cfg,
		group: uuid.New(),
		alice: uuid.New(),
		bob:   uuid.New(),
		admin: uuid.New(),
	}
	store.AddGroup(env.group, env.admin)
	store.AddMember(env.group, env.alice)
	store.AddUser(env.admin, "Admin")
	store.AddUser(env.alice, "Alice")
	store.AddUser(env.bob, "Bob")

	env.hub = NewHub(log)
	env.tracker = session.NewPresence()
	sessions := session.NewStoreWithClock(now)

	auth := service.NewAuthService(store.Membership(), cfg.JWT, log)
	chat := service.NewChatService(
		store.Chat(),
		store.Users(),
		auth,
		service.NewAuditService(store.Audit(), log),
		service.NewRateLimitService(store.RateLimit(), log),
		env.hub,
		cfg,
		log,
	)
	if wrapChat != nil {
		chat = wrapChat(chat)
	}
	lastSeen := service.NewPresenceService(store.Presence(), env.tracker, log)

	env.manager = NewManager(env.hub, sessions, env.tracker, auth, chat, lastSeen, cfg.Realtime, log)

	upgrader := websocket.Upgrader{}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		env.manager.Serve(conn)
	}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.manager.Shutdown(ctx)
		env.server.Close()
	})

	return env
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := jwt.GenerateAccessToken(userID, false, testSecret, "", time.Hour)
	require.NoError(t, err)
	return tok
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *testEnv) dial(t *testing.T) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) emit(event string, data interface{}) {
	c.t.Helper()
	frame, err := json.Marshal(map[string]interface{}{"type": event, "data": data})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

func (c *wsClient) read(timeout time.Duration) (*Envelope, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(frame)
}

// expect читает кадры до события event, пропуская остальные
func (c *wsClient) expect(event string, into interface{}) {
	c.t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		env, err := c.read(time.Until(deadline))
		require.NoError(c.t, err, "waiting for %s", event)
		if env.Type != event {
			continue
		}
		if into != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, into))
		}
		return
	}
	c.t.Fatalf("event %s not received", event)
}

// collect возвращает все события, пришедшие за окно ожидания
func (c *wsClient) collect(window time.Duration) []Envelope {
	var frames []Envelope
	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frames
		}
		env, err := c.read(remaining)
		if err != nil {
			return frames
		}
		frames = append(frames, *env)
	}
}

func countEvents(frames []Envelope, event string) int {
	n := 0
	for _, f := range frames {
		if f.Type == event {
			n++
		}
	}
	return n
}

func (c *wsClient) join(e *testEnv, userID uuid.UUID) *domain.JoinedGroupPayload {
	c.t.Helper()
	c.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: e.group.String(), Credential: e.token(c.t, userID)})

	var joined domain.JoinedGroupPayload
	c.expect(domain.EventJoinedGroup, &joined)
	return &joined
}

func TestManager_MemberAndNonMemberScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.dial(t)
	b := env.dial(t)

	joined := a.join(env, env.alice)
	assert.Equal(t, env.group.String(), joined.GroupID)
	assert.Empty(t, joined.Messages)

	b.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: env.group.String(), Credential: env.token(t, env.bob)})
	var joinErr domain.ErrorPayload
	b.expect(domain.EventErrorJoiningGroup, &joinErr)
	assert.Equal(t, apperrors.ReasonUnauthorized, joinErr.Reason)
	assert.Equal(t, 1, env.hub.RoomSize(env.group.String()))

	a.emit(domain.EventSendMessage, domain.SendMessageRequest{GroupID: env.group.String(), Content: "hello", Credential: env.token(t, env.alice)})
	var received domain.WireMessage
	a.expect(domain.EventReceiveMessage, &received)
	assert.Equal(t, "hello", received.Content)
	assert.Equal(t, "Alice", received.SenderName)

	a.emit(domain.EventEditMessage, domain.EditMessageRequest{
		MessageID: received.ID, GroupID: env.group.String(), NewContent: "hello edited", Credential: env.token(t, env.alice),
	})
	var edited domain.MessageEditedPayload
	a.expect(domain.EventMessageEdited, &edited)
	assert.Equal(t, domain.MessageEditedPayload{MessageID: received.ID, NewContent: "hello edited", IsEdited: true}, edited)

	a.emit(domain.EventSendMessage, domain.SendMessageRequest{
		GroupID: env.group.String(), Content: strings.Repeat("x", 1001), Credential: env.token(t, env.alice),
	})
	var tooLong domain.ErrorPayload
	a.expect(domain.EventMessageError, &tooLong)
	assert.Equal(t, apperrors.ReasonTooLong, tooLong.Reason)
	assert.Equal(t, 1, env.store.MessageCount())

	frames := b.collect(300 * time.Millisecond)
	assert.Zero(t, countEvents(frames, domain.EventReceiveMessage))
	assert.Zero(t, countEvents(frames, domain.EventMessageEdited))
}

func TestManager_JoinDeliversChronologicalHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 55; i++ {
		env.store.PutMessage(&domain.ChatMessage{
			ID:          uuid.New(),
			GroupID:     env.group,
			SenderID:    env.admin,
			MessageType: domain.MessageTypeText,
			Content:     "m",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
	}

	c := env.dial(t)
	joined := c.join(env, env.alice)
	require.Len(t, joined.Messages, 50)

	first, err := time.Parse(time.RFC3339Nano, joined.Messages[0].Timestamp)
	require.NoError(t, err)
	last, err := time.Parse(time.RFC3339Nano, joined.Messages[49].Timestamp)
	require.NoError(t, err)
	assert.True(t, first.Before(last))
	assert.True(t, base.Add(5*time.Second).Equal(first))

	// снимок приходит ровно один раз
	assert.Zero(t, countEvents(c.collect(200*time.Millisecond), domain.EventJoinedGroup))
}

func TestManager_JoinFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.dial(t)

	c.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: "g1", Credential: env.token(t, env.alice)})
	var payload domain.ErrorPayload
	c.expect(domain.EventErrorJoiningGroup, &payload)
	assert.Equal(t, apperrors.ReasonInvalidGroup, payload.Reason)

	c.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: env.group.String(), Credential: "expired-or-garbage"})
	c.expect(domain.EventAuthError, &payload)
	assert.Equal(t, apperrors.ReasonInvalidSession, payload.Reason)

	env.store.FailNext(repotest.OpFindRecentByGroup, assert.AnError)
	c.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: env.group.String(), Credential: env.token(t, env.alice)})
	c.expect(domain.EventErrorJoiningGroup, &payload)
	assert.Equal(t, apperrors.ReasonInternal, payload.Reason)

	// неудачный вход не оставляет подписку и не делает пользователя онлайн
	assert.Zero(t, env.hub.RoomSize(env.group.String()))
	assert.False(t, env.tracker.IsOnline(env.alice.String()))

	// соединение живо, повторный вход проходит
	c.join(env, env.alice)
	assert.True(t, env.tracker.IsOnline(env.alice.String()))
}

func TestManager_SessionMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.dial(t)
	c.join(env, env.alice)

	c.emit(domain.EventJoinGroup, domain.JoinGroupRequest{GroupID: env.group.String(), Credential: env.token(t, env.admin)})
	var payload domain.ErrorPayload
	c.expect(domain.EventAuthError, &payload)
	assert.Equal(t, apperrors.ReasonSessionMismatch, payload.Reason)
	assert.False(t, env.tracker.IsOnline(env.admin.String()))
}

func TestManager_PresenceAcrossConnections(t *testing.T) {
	env := newTestEnv(t, nil)
	observer := env.dial(t)

	var conns []*wsClient
	for i := 0; i < 3; i++ {
		c := env.dial(t)
		c.join(env, env.alice)
		conns = append(conns, c)
	}
	assert.Equal(t, 3, env.tracker.Count(env.alice.String()))

	// повторный вход в ту же группу тем же соединением не увеличивает счетчик
	conns[0].join(env, env.alice)
	assert.Equal(t, 3, env.tracker.Count(env.alice.String()))

	_ = conns[0].conn.Close()
	_ = conns[1].conn.Close()
	require.Eventually(t, func() bool { return env.tracker.Count(env.alice.String()) == 1 }, 3*time.Second, 10*time.Millisecond)

	_ = conns[2].conn.Close()
	require.Eventually(t, func() bool { return !env.tracker.IsOnline(env.alice.String()) }, 3*time.Second, 10*time.Millisecond)

	frames := observer.collect(300 * time.Millisecond)
	var online, offline int
	for _, f := range frames {
		if f.Type != domain.EventUserStatusUpdate {
			continue
		}
		var status domain.UserStatusPayload
		require.NoError(t, json.Unmarshal(f.Data, &status))
		assert.Equal(t, env.alice.String(), status.UserID)
		if status.IsOnline {
			online++
		} else {
			offline++
		}
	}
	assert.Equal(t, 1, online)
	assert.Equal(t, 1, offline)

	require.Eventually(t, func() bool {
		lastSeen, _ := env.store.Presence().GetLastSeen(context.Background(), env.alice)
		return lastSeen != nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestManager_DeleteTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.dial(t)
	a.join(env, env.alice)

	a.emit(domain.EventSendMessage, domain.SendMessageRequest{GroupID: env.group.String(), Content: "to be removed", Credential: env.token(t, env.alice)})
	var msg domain.WireMessage
	a.expect(domain.EventReceiveMessage, &msg)

	req := domain.DeleteMessageRequest{MessageID: msg.ID, GroupID: env.group.String(), Credential: env.token(t, env.alice)}
	a.emit(domain.EventDeleteMessage, req)
	a.emit(domain.EventDeleteMessage, req)

	var deleted domain.MessageDeletedPayload
	a.expect(domain.EventMessageDeleted, &deleted)
	assert.Equal(t, msg.ID, deleted.MessageID)
	require.NotNil(t, deleted.SystemMessage)
	assert.True(t, deleted.SystemMessage.IsSystemMessage)

	var rejection domain.ErrorPayload
	a.expect(domain.EventMessageError, &rejection)
	assert.Equal(t, apperrors.ReasonNotFound, rejection.Reason)

	assert.Zero(t, countEvents(a.collect(200*time.Millisecond), domain.EventMessageDeleted))
}

func TestManager_Typing(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.dial(t)
	admin := env.dial(t)
	stranger := env.dial(t)

	a.join(env, env.alice)
	admin.join(env, env.admin)

	a.emit(domain.EventTyping, domain.TypingRequest{GroupID: env.group.String(), IsTyping: true})
	var typing domain.UserTypingPayload
	admin.expect(domain.EventUserTyping, &typing)
	assert.Equal(t, domain.UserTypingPayload{UserID: env.alice.String(), IsTyping: true, GroupID: env.group.String()}, typing)

	// соединение без входа в комнату игнорируется
	stranger.emit(domain.EventTyping, domain.TypingRequest{GroupID: env.group.String(), IsTyping: true})
	assert.Zero(t, countEvents(admin.collect(200*time.Millisecond), domain.EventUserTyping))
	assert.Zero(t, countEvents(a.collect(100*time.Millisecond), domain.EventUserTyping))
}

func TestManager_IdleEviction(t *testing.T) {
	env := newTestEnv(t, nil)
	idle := env.dial(t)
	idle.join(env, env.alice)

	active := env.dial(t)
	active.join(env, env.admin)

	env.clock.Advance(90 * time.Second)
	active.emit(domain.EventTyping, domain.TypingRequest{GroupID: env.group.String()})
	require.Eventually(t, func() bool {
		return len(env.manager.sessions.Idle(time.Minute)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	env.clock.Advance(60 * time.Second)
	assert.Equal(t, 1, env.manager.SweepIdle())

	// сервер закрывает соединение, как при обрыве
	for {
		_, err := idle.read(3 * time.Second)
		if err != nil {
			break
		}
	}
	assert.False(t, env.tracker.IsOnline(env.alice.String()))
	assert.True(t, env.tracker.IsOnline(env.admin.String()))
	assert.Equal(t, 1, env.hub.RoomSize(env.group.String()))
}

func TestManager_PongsDoNotKeepSilentClientAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Realtime.PongWait = 200 * time.Millisecond
	cfg.Realtime.IdleTimeout = 500 * time.Millisecond
	env := newTestEnvWith(t, cfg, nil, time.Now)

	silent := env.dial(t)
	silent.join(env, env.alice)

	// клиент только читает: на пинги сервера уходят автоматические pong
	readerDone := make(chan struct{})
	require.NoError(t, silent.conn.SetReadDeadline(time.Time{}))
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := silent.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(1500 * time.Millisecond)
	require.Equal(t, 1, env.manager.sessions.Len(), "pongs keep the socket open past PongWait")

	assert.Equal(t, 1, env.manager.SweepIdle())

	select {
	case <-readerDone:
	case <-time.After(3 * time.Second):
		t.Fatal("evicted connection was not closed")
	}
	assert.False(t, env.tracker.IsOnline(env.alice.String()))
	assert.Equal(t, 0, env.hub.RoomSize(env.group.String()))
}

func TestManager_ServeAfterShutdownRejects(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.manager.Shutdown(ctx))

	late := env.dial(t)
	_, err := late.read(2 * time.Second)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, env.manager.ConnectionCount())
}

type panickingChat struct {
	service.ChatService
}

func (panickingChat) SendMessage(context.Context, *domain.SendMessageRequest) (*domain.WireMessage, error) {
	panic("boom")
}

func TestManager_HandlerPanicKeepsConnection(t *testing.T) {
	env := newTestEnv(t, func(chat service.ChatService) service.ChatService {
		return panickingChat{ChatService: chat}
	})
	c := env.dial(t)
	c.join(env, env.alice)

	c.emit(domain.EventSendMessage, domain.SendMessageRequest{GroupID: env.group.String(), Content: "hi", Credential: env.token(t, env.alice)})
	var payload domain.ErrorPayload
	c.expect(domain.EventMessageError, &payload)
	assert.Equal(t, apperrors.ReasonInternal, payload.Reason)

	// соединение продолжает работать
	c.join(env, env.alice)
}

func TestManager_MalformedFramesAreIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.dial(t)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	c.emit("unknownEvent", map[string]string{})
	c.emit(domain.EventSendMessage, "not an object")

	var payload domain.ErrorPayload
	c.expect(domain.EventMessageError, &payload)
	assert.Equal(t, apperrors.ReasonInvalidPayload, payload.Reason)

	c.join(env, env.alice)
}
