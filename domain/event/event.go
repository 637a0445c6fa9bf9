package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything that happened to a conversation and that
// subscribers may want to observe.
type DomainEvent interface {
	ConversationID() string
}

// MessageSent is emitted after a message has been persisted.
type MessageSent struct {
	ID           uuid.UUID
	Conversation string
	SenderID     string
	Content      string
	Lang         string
	At           time.Time
}

func (e MessageSent) ConversationID() string { return e.Conversation }

// MessagesRead is emitted after a participant marked the thread as read.
type MessagesRead struct {
	Conversation string
	ReaderID     string
	At           time.Time
}

func (e MessagesRead) ConversationID() string { return e.Conversation }

// ConversationCreated is emitted when a thread is created for a new user identity.
type ConversationCreated struct {
	Conversation string
	UserID       string
	DisplayName  string
	At           time.Time
}

func (e ConversationCreated) ConversationID() string { return e.Conversation }
