package domain

import "time"

// OperatorID is the fixed identity of the service operator. Every conversation
// has exactly two participants: one end-user and the operator.
const OperatorID = "operator"

// Conversation represents a two-party message thread between an end-user
// and the operator. There is at most one conversation per end-user identity,
// and a conversation is never deleted by normal operation.
type Conversation struct {
	ID            string
	Participants  []string
	LastMessage   string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// OtherParticipant returns the participant that is not the given user,
// or an empty string if the user is not part of the conversation.
func (c Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
