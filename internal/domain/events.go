package domain

import "time"

// Имена событий websocket-протокола
const (
	// клиент -> сервер
	EventJoinGroup      = "joinGroup"
	EventSendMessage    = "sendMessage"
	EventEditMessage    = "editMessage"
	EventDeleteMessage  = "deleteMessage"
	EventReactToMessage = "reactToMessage"
	EventTyping         = "typing"

	// сервер -> клиент
	EventJoinedGroup       = "joinedGroup"
	EventErrorJoiningGroup = "errorJoiningGroup"
	EventAuthError         = "authError"
	EventReceiveMessage    = "receiveMessage"
	EventMessageError      = "messageError"
	EventMessageEdited     = "messageEdited"
	EventMessageDeleted    = "messageDeleted"
	EventMessageReaction   = "messageReaction"
	EventUserTyping        = "userTyping"
	EventUserStatusUpdate  = "userStatusUpdate"
)

// WireMessage - каноническое представление сообщения для клиентов.
// Имя и аватар отправителя фиксируются в момент отправки.
type WireMessage struct {
	ID              string              `json:"id"`
	GroupID         string              `json:"groupId"`
	SenderID        string              `json:"senderId"`
	SenderName      string              `json:"senderName"`
	SenderAvatar    string              `json:"senderAvatar"`
	Content         string              `json:"content"`
	Timestamp       string              `json:"timestamp"`
	Type            string              `json:"type,omitempty"`
	IsEdited        bool                `json:"isEdited,omitempty"`
	IsSystemMessage bool                `json:"isSystemMessage,omitempty"`
	ReplyTo         string              `json:"replyTo,omitempty"`
	Attachments     []Attachment        `json:"attachments,omitempty"`
	Reactions       map[string][]string `json:"reactions,omitempty"`
}

func NewWireMessage(m *ChatMessage, sender *UserProfile) *WireMessage {
	wm := &WireMessage{
		ID:              m.ID.String(),
		GroupID:         m.GroupID.String(),
		SenderID:        m.SenderID.String(),
		Content:         m.Content,
		Timestamp:       m.CreatedAt.UTC().Format(time.RFC3339Nano),
		Type:            m.MessageType,
		IsEdited:        m.IsEdited,
		IsSystemMessage: m.MessageType == MessageTypeSystem,
		Attachments:     m.Attachments,
		Reactions:       m.Reactions,
	}
	if sender != nil {
		wm.SenderName = sender.Name
		wm.SenderAvatar = sender.Avatar()
	}
	if m.ReplyTo != nil {
		wm.ReplyTo = m.ReplyTo.String()
	}
	return wm
}

// Входящие payload'ы

type JoinGroupRequest struct {
	GroupID    string `json:"groupId"`
	Credential string `json:"credential"`
}

type SendMessageRequest struct {
	GroupID     string       `json:"groupId"`
	Content     string       `json:"content"`
	Credential  string       `json:"credential"`
	Type        string       `json:"type"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type EditMessageRequest struct {
	MessageID  string `json:"messageId"`
	GroupID    string `json:"groupId"`
	NewContent string `json:"newContent"`
	Credential string `json:"credential"`
}

type DeleteMessageRequest struct {
	MessageID  string `json:"messageId"`
	GroupID    string `json:"groupId"`
	Credential string `json:"credential"`
}

type ReactToMessageRequest struct {
	MessageID  string `json:"messageId"`
	GroupID    string `json:"groupId"`
	Emoji      string `json:"emoji"`
	Credential string `json:"credential"`
}

type TypingRequest struct {
	GroupID  string `json:"groupId"`
	IsTyping bool   `json:"isTyping"`
}

// Исходящие payload'ы

type JoinedGroupPayload struct {
	GroupID  string         `json:"groupId"`
	Messages []*WireMessage `json:"messages"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

type MessageEditedPayload struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
	IsEdited   bool   `json:"isEdited"`
}

type MessageDeletedPayload struct {
	MessageID     string       `json:"messageId"`
	SystemMessage *WireMessage `json:"systemMessage"`
}

type MessageReactionPayload struct {
	MessageID string              `json:"messageId"`
	GroupID   string              `json:"groupId"`
	Reactions map[string][]string `json:"reactions"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
	GroupID  string `json:"groupId"`
}

type UserStatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
