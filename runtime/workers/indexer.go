package workers

import (
	"context"
	"log/slog"

	"studio-live/domain"
	"studio-live/domain/event"
	"studio-live/search"
)

// IndexerWorker feeds sent messages into the full-text index. Indexing lag is
// acceptable; the badger store remains the source of truth.
type IndexerWorker struct {
	log         *slog.Logger
	indexEvents chan event.DomainEvent
	index       *search.MessageIndex
}

func NewIndexerWorker(log *slog.Logger, indexEvents chan event.DomainEvent, index *search.MessageIndex) *IndexerWorker {
	return &IndexerWorker{log: log, indexEvents: indexEvents, index: index}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping indexer")
			return nil
		case evt, ok := <-w.indexEvents:
			if !ok {
				w.log.Debug("Index channel closed")
				return nil
			}
			sent, isMessage := evt.(event.MessageSent)
			if !isMessage {
				continue
			}
			message := domain.Message{
				ID:             sent.ID,
				ConversationID: sent.Conversation,
				SenderID:       sent.SenderID,
				Content:        sent.Content,
				Lang:           sent.Lang,
				CreatedAt:      sent.At,
			}
			if err := w.index.Index(message); err != nil {
				w.log.Warn("Failed to index message", "message", sent.ID, "err", err)
			}
		}
	}
}
