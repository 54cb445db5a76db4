package events

import (
	"context"
	"sync"
)

// Listener receives at most one message for the session it is registered for.
// It is either a *PollListener or a *PushListener.
type Listener interface {
	Token() string
	deliver(message Message)
}

// PollListener backs a long-poll request: the request goroutine blocks in Wait
// until a message arrives or the client goes away.
type PollListener struct {
	token    string
	messages chan Message
}

func NewPollListener(token string) *PollListener {
	return &PollListener{
		token:    token,
		messages: make(chan Message, 1),
	}
}

func (l *PollListener) Token() string {
	return l.token
}

func (l *PollListener) deliver(message Message) {
	select {
	case l.messages <- message:
	default:
	}
}

// Wait blocks until a message is delivered or ctx is done.
func (l *PollListener) Wait(ctx context.Context) (Message, error) {
	select {
	case message := <-l.messages:
		return message, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// PushListener forwards its message to a callback, e.g. a websocket writer.
type PushListener struct {
	token string
	once  sync.Once
	send  func(Message)
}

func NewPushListener(token string, send func(Message)) *PushListener {
	return &PushListener{
		token: token,
		send:  send,
	}
}

func (l *PushListener) Token() string {
	return l.token
}

func (l *PushListener) deliver(message Message) {
	l.once.Do(func() {
		l.send(message)
	})
}
