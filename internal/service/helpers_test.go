package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"group_chat/internal/config"
	"group_chat/internal/repository/repotest"
	"group_chat/pkg/jwt"
	"group_chat/pkg/logger"
)

const testSecret = "service-test-secret"

type emitted struct {
	room    string
	event   string
	payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (b *recordingBroadcaster) EmitToRoom(roomID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{room: roomID, event: event, payload: payload})
}

func (b *recordingBroadcaster) all() []emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]emitted(nil), b.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testSecret},
		Realtime: config.RealtimeConfig{
			HistoryLimit:     50,
			MaxContentLength: 1000,
			MaxAttachments:   10,
		},
		RateLimit: config.RateLimitConfig{
			Messages: 1000,
			Window:   time.Minute,
		},
	}
}

type fixture struct {
	store  *repotest.Store
	bus    *recordingBroadcaster
	auth   AuthService
	chat   ChatService
	cfg    *config.Config
	group  uuid.UUID
	admin  uuid.UUID
	member uuid.UUID
	other  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	log := logger.NewNop()
	store := repotest.NewStore()
	bus := &recordingBroadcaster{}

	f := &fixture{
		store:  store,
		bus:    bus,
		cfg:    cfg,
		group:  uuid.New(),
		admin:  uuid.New(),
		member: uuid.New(),
		other:  uuid.New(),
	}

	store.AddGroup(f.group, f.admin)
	store.AddMember(f.group, f.member)
	store.AddUser(f.admin, "Admin")
	store.AddUser(f.member, "Alice")
	store.AddUser(f.other, "Bob")

	f.auth = NewAuthService(store.Membership(), cfg.JWT, log)
	f.chat = NewChatService(
		store.Chat(),
		store.Users(),
		f.auth,
		NewAuditService(store.Audit(), log),
		NewRateLimitService(store.RateLimit(), log),
		bus,
		cfg,
		log,
	)
	return f
}

func token(t *testing.T, userID uuid.UUID, superAdmin bool) string {
	t.Helper()
	tok, err := jwt.GenerateAccessToken(userID, superAdmin, testSecret, "", time.Hour)
	require.NoError(t, err)
	return tok
}
