package model

import "github.com/google/uuid"

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchange entry in a conversation, oldest first.
type Turn struct {
	Role Role
	Text string
}
