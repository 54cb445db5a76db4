package events

type MessageType string

const (
	// Session status changed; Data is the new session.Status.
	MessageTypeStatus MessageType = "status"
	// A test received its result; Data is the test id.
	MessageTypeComplete MessageType = "complete"
	// The session is being continued in another session; Data is that session's token.
	MessageTypeResume MessageType = "resume"
	// Free-form message sent by a client.
	MessageTypeMessage MessageType = "message"
)

type Message struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
