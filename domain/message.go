// Package domain contains core concepts of the studio-live backend.
// This file defines Message and related rules.
// Messages are immutable once created, except for their read flag.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents one chat message inside a conversation.
type Message struct {
	ID             uuid.UUID // unique identifier
	ConversationID string
	SenderID       string
	Content        string
	Lang           string // ISO 639-3 code detected at send time, empty when unknown
	CreatedAt      time.Time
	Read           bool
}

// ValidContent reports whether the given text may become a message.
// Whitespace-only content is rejected before it ever reaches the store.
func ValidContent(content string) bool {
	return strings.TrimSpace(content) != ""
}
