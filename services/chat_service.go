//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio-live/contract"
	"studio-live/domain"
	"studio-live/domain/event"
	"studio-live/errors"
	"studio-live/moderation"
	"studio-live/observability"
	"studio-live/repositories"
	"studio-live/runtime"
)

type IChatService interface {
	GetOrCreateConversation(ctx context.Context, userID, displayName string) (domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error)
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	Subscribe(conversationID string, sink contract.MessageSink) contract.Unsubscribe
	SubscribeAll(sink contract.ConversationSink) contract.Unsubscribe
}

// ChatService exposes a conversation as a live-updating ordered message list
// plus a send/mark-read contract. Writes go to the store synchronously so the
// caller learns about rejections; snapshot delivery to subscribers is
// asynchronous through the orchestrator pipeline.
type ChatService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	moderator     *moderation.Moderator
	orchestrator  *runtime.Orchestrator
	monitor       *observability.Monitor
}

func NewChatService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	orchestrator *runtime.Orchestrator,
	monitor *observability.Monitor,
) *ChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		moderator:     moderator,
		orchestrator:  orchestrator,
		monitor:       monitor,
	}
}

// GetOrCreateConversation returns the single thread owned by userID,
// creating it on first access. Concurrent calls converge on the same thread.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userID, displayName string) (domain.Conversation, error) {
	conv, created, err := s.conversations.GetOrCreate(userID, displayName)
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		s.orchestrator.Publish(event.ConversationCreated{
			Conversation: conv.ID,
			UserID:       userID,
			DisplayName:  displayName,
			At:           time.Now().UTC(),
		})
	}
	return conv, nil
}

// SendMessage appends a message with a server-assigned timestamp. Empty or
// whitespace-only content is rejected before touching the store. The content
// is censored and language-tagged on the way in; the stored text is what
// subscribers will see.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	if !domain.ValidContent(content) {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if _, err := s.conversations.Get(conversationID); err != nil {
		return domain.Message{}, err
	}

	censored := strings.TrimSpace(content)
	if s.moderator != nil {
		censored = s.moderator.Censor(censored)
	}

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        censored,
		Lang:           moderation.DetectLang(censored),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}
	if err := s.conversations.TouchLastMessage(conversationID, message.Content, message.CreatedAt); err != nil {
		// The message itself is safe; only the preview is stale.
		s.log.Warn("Failed to update conversation preview", "conversation", conversationID, "err", err)
	}
	s.monitor.IncrMessagesStored()

	s.orchestrator.Publish(event.MessageSent{
		ID:           message.ID,
		Conversation: conversationID,
		SenderID:     senderID,
		Content:      message.Content,
		Lang:         message.Lang,
		At:           message.CreatedAt,
	})
	return message, nil
}

// MarkMessagesAsRead flips the read flag on messages not authored by userID.
// Best-effort: a failure here never affects delivery.
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	updated, err := s.messages.MarkRead(conversationID, userID)
	if err != nil {
		return err
	}
	if updated > 0 {
		s.orchestrator.Publish(event.MessagesRead{
			Conversation: conversationID,
			ReaderID:     userID,
			At:           time.Now().UTC(),
		})
	}
	return nil
}

func (s *ChatService) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.messages.GetMessages(conversationID)
}

func (s *ChatService) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	return s.conversations.List()
}

// Subscribe attaches a live sink to one conversation and immediately triggers
// an initial snapshot so new subscribers do not wait for the next message.
func (s *ChatService) Subscribe(conversationID string, sink contract.MessageSink) contract.Unsubscribe {
	unsubscribe := s.orchestrator.Registry().Subscribe(conversationID, sink)
	go func() {
		messages, err := s.messages.GetMessages(conversationID)
		if err != nil {
			s.log.Debug("Initial snapshot load failed", "conversation", conversationID, "err", err)
			return
		}
		if err := sink.Messages(context.Background(), conversationID, messages); err != nil {
			s.log.Debug("Initial snapshot delivery failed", "conversation", conversationID, "err", err)
		}
	}()
	return unsubscribe
}

// SubscribeAll attaches an operator dashboard sink over every conversation.
func (s *ChatService) SubscribeAll(sink contract.ConversationSink) contract.Unsubscribe {
	return s.orchestrator.Registry().SubscribeAll(sink)
}
