package workers

import (
	"context"
	"log/slog"
	"time"

	"studio-live/contract"
	"studio-live/domain/event"
	"studio-live/repositories"
)

// SnapshotFanout turns domain events into live snapshots for subscribers.
//
// On every conversation event it reloads the full ordered message list and
// hands it to each conversation sink, then reloads the conversation list for
// the dashboard sinks. Delivery is best-effort with a per-sink timeout; a slow
// subscriber loses a snapshot, it never blocks the pipeline. SnapshotFanout is
// not a message broker.
type SnapshotFanout struct {
	log           *slog.Logger
	events        chan event.DomainEvent
	indexEvents   chan event.DomainEvent
	registry      contract.IRegistry
	messages      repositories.IMessageRepository
	conversations repositories.IConversationRepository
	sinkTimeout   time.Duration
}

func NewSnapshotFanout(
	log *slog.Logger,
	events, indexEvents chan event.DomainEvent,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	sinkTimeout time.Duration,
) *SnapshotFanout {
	return &SnapshotFanout{
		log:           log,
		events:        events,
		indexEvents:   indexEvents,
		registry:      registry,
		messages:      messages,
		conversations: conversations,
		sinkTimeout:   sinkTimeout,
	}
}

func (w *SnapshotFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping snapshot fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.fanout(ctx, evt)
			// Forward to the indexer without ever blocking on it.
			select {
			case w.indexEvents <- evt:
			default:
				w.log.Debug("Index event lost, indexer is behind")
			}
		}
	}
}

func (w *SnapshotFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	conversationID := evt.ConversationID()

	sinks := w.registry.SinksFor(conversationID)
	if len(sinks) > 0 {
		messages, err := w.messages.GetMessages(conversationID)
		if err != nil {
			w.log.Error("Failed to load messages for snapshot", "conversation", conversationID, "err", err)
		} else {
			for _, sink := range sinks {
				w.deliver(ctx, func(sinkCtx context.Context) error {
					return sink.Messages(sinkCtx, conversationID, messages)
				})
			}
		}
	}

	allSinks := w.registry.AllSinks()
	if len(allSinks) == 0 {
		return
	}
	conversations, err := w.conversations.List()
	if err != nil {
		w.log.Error("Failed to load conversation list for snapshot", "err", err)
		return
	}
	for _, sink := range allSinks {
		w.deliver(ctx, func(sinkCtx context.Context) error {
			return sink.Conversations(sinkCtx, conversations)
		})
	}
}

func (w *SnapshotFanout) deliver(ctx context.Context, send func(context.Context) error) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := send(sinkCtx); err != nil {
		w.log.Debug("Snapshot delivery failed", "err", err)
	}
}
