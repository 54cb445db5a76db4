package events

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Hub fans messages for a session out to the listeners registered for it.
// Listeners are one-shot: a dispatch delivers to every listener registered at that moment
// and then forgets them.
type Hub struct {
	mu        sync.Mutex
	listeners map[string][]Listener
}

func NewHub() *Hub {
	return &Hub{
		listeners: map[string][]Listener{},
	}
}

func (h *Hub) Register(listener Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	token := listener.Token()
	h.listeners[token] = append(h.listeners[token], listener)
}

// Unregister removes listener without delivering to it. It returns false if the
// listener was not registered, e.g. because a message was already delivered.
func (h *Hub) Unregister(listener Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	token := listener.Token()
	listeners := h.listeners[token]
	i := slices.Index(listeners, listener)
	if i < 0 {
		return false
	}
	listeners = slices.Delete(listeners, i, i+1)
	if len(listeners) == 0 {
		delete(h.listeners, token)
	} else {
		h.listeners[token] = listeners
	}
	return true
}

// Dispatch delivers message to the listeners of token in registration order and
// returns how many there were.
func (h *Hub) Dispatch(token string, message Message) int {
	h.mu.Lock()
	listeners := h.listeners[token]
	delete(h.listeners, token)
	h.mu.Unlock()

	for _, listener := range listeners {
		listener.deliver(message)
	}
	return len(listeners)
}

// Count returns the number of listeners waiting on token.
func (h *Hub) Count(token string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[token])
}
