package ws

import (
	"sync"

	"group_chat/pkg/logger"
)

// Hub держит подписки соединений на комнаты и рассылает кадры.
// Все записи в send-каналы клиентов идут под mu, поэтому порядок событий
// одной комнаты одинаков для всех подписчиков.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// Unregister убирает соединение из всех комнат и закрывает его очередь отправки.
// Повторный вызов ничего не делает.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.dropLocked(c)
}

// Subscribe возвращает true, если соединение подписалось на комнату только сейчас
func (h *Hub) Subscribe(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	if _, joined := c.rooms[room]; joined {
		return false
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.leaveLocked(c, room)
}

func (h *Hub) EmitToRoom(room, event string, payload interface{}) {
	h.emitToRoom(room, "", event, payload)
}

// EmitToRoomExcept рассылает всем подписчикам комнаты, кроме соединения exceptConnID
func (h *Hub) EmitToRoomExcept(room, exceptConnID, event string, payload interface{}) {
	h.emitToRoom(room, exceptConnID, event, payload)
}

func (h *Hub) emitToRoom(room, exceptConnID, event string, payload interface{}) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "error", err, "event", event, "room", room)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		if c.id == exceptConnID {
			continue
		}
		h.enqueueLocked(c, frame)
	}
}

func (h *Hub) EmitToConnection(connID, event string, payload interface{}) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "error", err, "event", event, "conn_id", connID)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[connID]; ok {
		h.enqueueLocked(c, frame)
	}
}

// EmitGlobal рассылает всем соединениям процесса, включая еще не вошедшие в группы
func (h *Hub) EmitGlobal(event string, payload interface{}) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "error", err, "event", event)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		h.enqueueLocked(c, frame)
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *Hub) ConnectionIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// enqueueLocked не блокирует: клиент с полной очередью отключается
func (h *Hub) enqueueLocked(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.log.Warn("Client buffer full, disconnecting", "conn_id", c.id)
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c.id)

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
}
