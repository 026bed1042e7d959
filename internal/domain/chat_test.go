package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToggleReaction(t *testing.T) {
	reactions := ToggleReaction(nil, "👍", "u1")
	assert.Equal(t, map[string][]string{"👍": {"u1"}}, reactions)

	reactions = ToggleReaction(reactions, "👍", "u2")
	assert.Equal(t, []string{"u1", "u2"}, reactions["👍"])

	reactions = ToggleReaction(reactions, "👍", "u1")
	assert.Equal(t, []string{"u2"}, reactions["👍"])

	reactions = ToggleReaction(reactions, "👍", "u2")
	_, ok := reactions["👍"]
	assert.False(t, ok, "empty reaction sets are dropped")
}

func TestIsClientMessageType(t *testing.T) {
	for _, typ := range []string{MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile, MessageTypePDF} {
		assert.True(t, IsClientMessageType(typ), typ)
	}
	assert.False(t, IsClientMessageType(MessageTypeSystem))
	assert.False(t, IsClientMessageType("gif"))
}

func TestNewWireMessage(t *testing.T) {
	avatar := "https://cdn.example/a.png"
	replyTo := uuid.New()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3*3600))

	m := &ChatMessage{
		ID:          uuid.New(),
		GroupID:     uuid.New(),
		SenderID:    uuid.New(),
		MessageType: MessageTypeText,
		Content:     "hello",
		ReplyTo:     &replyTo,
		IsEdited:    true,
		CreatedAt:   created,
	}

	wm := NewWireMessage(m, &UserProfile{ID: m.SenderID, Name: "Alice", AvatarURL: &avatar})
	assert.Equal(t, m.ID.String(), wm.ID)
	assert.Equal(t, m.GroupID.String(), wm.GroupID)
	assert.Equal(t, "Alice", wm.SenderName)
	assert.Equal(t, avatar, wm.SenderAvatar)
	assert.Equal(t, "2024-03-01T09:00:00Z", wm.Timestamp)
	assert.Equal(t, replyTo.String(), wm.ReplyTo)
	assert.True(t, wm.IsEdited)
	assert.False(t, wm.IsSystemMessage)

	m.MessageType = MessageTypeSystem
	wm = NewWireMessage(m, nil)
	assert.True(t, wm.IsSystemMessage)
	assert.Empty(t, wm.SenderName)
}
