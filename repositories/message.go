//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"studio-live/domain"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(conversationID string) ([]domain.Message, error)
	MarkRead(conversationID, readerID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageKey builds "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

// StoreMessage persists a message in BadgerDB.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := json.Marshal(toStoredMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
}

// GetMessages retrieves the messages of a conversation using a prefix scan.
// Thanks to the padded timestamp in the key, messages come back naturally
// sorted by send time, ascending. It stops once the configured limit is reached.
func (m MessageRepository) GetMessages(conversationID string) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := fromStoredBytes(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips the read flag on every message of the conversation that was
// not authored by readerID. Best-effort: the read marker is a last-writer-wins
// field and losing a concurrent update is acceptable. Returns how many
// messages were updated.
func (m MessageRepository) MarkRead(conversationID, readerID string) (int, error) {
	updated := 0
	prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
	err := m.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			var stored storedMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &stored)
			})
			if err != nil {
				return err
			}
			if stored.SenderID == readerID || stored.Read {
				continue
			}
			stored.Read = true
			bytes, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := txn.Set(key, bytes); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// storedMessage is the on-disk shape. Kept separate from domain.Message so the
// storage layout can evolve without touching the domain.
type storedMessage struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation_id"`
	SenderID     string `json:"sender_id"`
	Content      string `json:"content"`
	Lang         string `json:"lang,omitempty"`
	At           int64  `json:"at"`
	Read         bool   `json:"read"`
}

func toStoredMessage(m domain.Message) storedMessage {
	return storedMessage{
		ID:           m.ID.String(),
		Conversation: m.ConversationID,
		SenderID:     m.SenderID,
		Content:      m.Content,
		Lang:         m.Lang,
		At:           m.CreatedAt.UnixNano(),
		Read:         m.Read,
	}
}

func fromStoredBytes(value []byte) (domain.Message, error) {
	var stored storedMessage
	if err := json.Unmarshal(value, &stored); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             parsedID,
		ConversationID: stored.Conversation,
		SenderID:       stored.SenderID,
		Content:        stored.Content,
		Lang:           stored.Lang,
		CreatedAt:      time.Unix(0, stored.At).UTC(),
		Read:           stored.Read,
	}, nil
}
