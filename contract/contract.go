//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"studio-live/domain"
	"studio-live/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageSink receives the full ordered message list of a conversation
// every time the conversation changes.
type MessageSink interface {
	Messages(ctx context.Context, conversationID string, messages []domain.Message) error
}

// ConversationSink receives the full conversation list every time any
// conversation changes. Used by the operator dashboard.
type ConversationSink interface {
	Conversations(ctx context.Context, conversations []domain.Conversation) error
}

// EventSink consumes domain events as they are fanned out.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Unsubscribe cancels a live subscription. Safe to call more than once.
type Unsubscribe func()

type IRegistry interface {
	Subscribe(conversationID string, sink MessageSink) Unsubscribe
	SubscribeAll(sink ConversationSink) Unsubscribe
	SinksFor(conversationID string) []MessageSink
	AllSinks() []ConversationSink
}
