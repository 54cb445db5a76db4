package manager

import (
	"github.com/cta-wave/wave/internal/wave/events"
)

// AddSessionClient registers a listener for the next message of its session.
func (m *SessionManager) AddSessionClient(listener events.Listener) {
	m.hub.Register(listener)
}

// RemoveSessionClient forgets a listener whose client went away. It returns false if the
// listener had already received its message.
func (m *SessionManager) RemoveSessionClient(listener events.Listener) bool {
	return m.hub.Unregister(listener)
}

// SendClientMessage sends a free-form message to the clients of a session and returns how
// many received it.
func (m *SessionManager) SendClientMessage(token string, message interface{}) int {
	return m.hub.Dispatch(token, events.Message{Type: events.MessageTypeMessage, Data: message})
}
