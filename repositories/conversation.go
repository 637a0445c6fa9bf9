//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"studio-live/domain"
	apperrors "studio-live/errors"
)

type IConversationRepository interface {
	GetOrCreate(userID, displayName string) (domain.Conversation, bool, error)
	Get(conversationID string) (domain.Conversation, error)
	List() ([]domain.Conversation, error)
	TouchLastMessage(conversationID, content string, at time.Time) error
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

func conversationKey(id string) []byte { return []byte("conv:" + id) }
func identityKey(userID string) []byte { return []byte("conv:user:" + userID) }

// GetOrCreate returns the conversation owned by userID, creating it on first
// access. The identity mapping "conv:user:{userID}" and the conversation
// record are written inside a single transaction, so two concurrent calls for
// a brand-new user conflict at commit time; the loser retries and then finds
// the winner's mapping. This closes the duplicate-thread race the original
// store left open. The second return value is true when the thread was created.
func (c ConversationRepository) GetOrCreate(userID, displayName string) (domain.Conversation, bool, error) {
	for {
		conv, created, err := c.tryGetOrCreate(userID)
		if errors.Is(err, badger.ErrConflict) {
			c.log.Debug("Conversation creation conflict, retrying", "user", userID)
			continue
		}
		if err != nil {
			return domain.Conversation{}, false, err
		}
		if created {
			c.log.Info("Conversation created", "conversation", conv.ID, "user", userID, "name", displayName)
		}
		return conv, created, nil
	}
}

func (c ConversationRepository) tryGetOrCreate(userID string) (domain.Conversation, bool, error) {
	var conv domain.Conversation
	created := false
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(userID))
		switch {
		case err == nil:
			return item.Value(func(value []byte) error {
				existing, err := c.getInTxn(txn, string(value))
				if err != nil {
					return err
				}
				conv = existing
				return nil
			})
		case errors.Is(err, badger.ErrKeyNotFound):
			// First access by this identity: create the thread.
		default:
			return err
		}

		conv = domain.Conversation{
			ID:           uuid.NewString(),
			Participants: []string{userID, domain.OperatorID},
			CreatedAt:    time.Now().UTC(),
		}
		bytes, err := json.Marshal(toStoredConversation(conv))
		if err != nil {
			return err
		}
		if err := txn.Set(conversationKey(conv.ID), bytes); err != nil {
			return err
		}
		if err := txn.Set(identityKey(userID), []byte(conv.ID)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, created, nil
}

func (c ConversationRepository) Get(conversationID string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		found, err := c.getInTxn(txn, conversationID)
		if err != nil {
			return err
		}
		conv = found
		return nil
	})
	return conv, err
}

func (c ConversationRepository) getInTxn(txn *badger.Txn, conversationID string) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(conversationID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, apperrors.ErrConversationUnknown
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	err = item.Value(func(value []byte) error {
		stored := storedConversation{}
		if err := json.Unmarshal(value, &stored); err != nil {
			return err
		}
		conv = fromStoredConversation(stored)
		return nil
	})
	return conv, err
}

// List returns every conversation, most recently active first. The prefix
// scan skips identity mapping keys ("conv:user:...") by shape.
func (c ConversationRepository) List() ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	prefix := []byte("conv:")
	identityPrefix := []byte("conv:user:")
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if hasPrefix(item.Key(), identityPrefix) {
				continue
			}
			err := item.Value(func(value []byte) error {
				stored := storedConversation{}
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				conversations = append(conversations, fromStoredConversation(stored))
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
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

// TouchLastMessage updates the conversation preview fields after a send.
func (c ConversationRepository) TouchLastMessage(conversationID, content string, at time.Time) error {
	return c.db.Update(func(txn *badger.Txn) error {
		conv, err := c.getInTxn(txn, conversationID)
		if err != nil {
			return err
		}
		conv.LastMessage = content
		conv.LastMessageAt = at
		bytes, err := json.Marshal(toStoredConversation(conv))
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(conversationID), bytes)
	})
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

type storedConversation struct {
	ID            string   `json:"id"`
	Participants  []string `json:"participants"`
	LastMessage   string   `json:"last_message,omitempty"`
	LastMessageAt int64    `json:"last_message_at,omitempty"`
	CreatedAt     int64    `json:"created_at"`
}

func toStoredConversation(conv domain.Conversation) storedConversation {
	stored := storedConversation{
		ID:           conv.ID,
		Participants: conv.Participants,
		LastMessage:  conv.LastMessage,
		CreatedAt:    conv.CreatedAt.UnixNano(),
	}
	if !conv.LastMessageAt.IsZero() {
		stored.LastMessageAt = conv.LastMessageAt.UnixNano()
	}
	return stored
}

func fromStoredConversation(stored storedConversation) domain.Conversation {
	conv := domain.Conversation{
		ID:           stored.ID,
		Participants: stored.Participants,
		LastMessage:  stored.LastMessage,
		CreatedAt:    time.Unix(0, stored.CreatedAt).UTC(),
	}
	if stored.LastMessageAt != 0 {
		conv.LastMessageAt = time.Unix(0, stored.LastMessageAt).UTC()
	}
	return conv
}
