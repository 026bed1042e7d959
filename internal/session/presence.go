package session

import "sync"

// Presence считает открытые соединения пользователя.
// Онлайн <=> счетчик > 0; события шлются только на переходах 0->1 и 1->0.
type Presence struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresence() *Presence {
	return &Presence{counts: make(map[string]int)}
}

// Increment возвращает true, если пользователь только что стал онлайн
func (p *Presence) Increment(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	return p.counts[userID] == 1
}

// Decrement возвращает true, если закрылось последнее соединение пользователя
func (p *Presence) Decrement(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.counts[userID]
	if !ok || count <= 0 {
		return false
	}
	if count == 1 {
		delete(p.counts, userID)
		return true
	}
	p.counts[userID] = count - 1
	return false
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0
}

func (p *Presence) Count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}
