package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studio-live/contract"
	"studio-live/domain"
	"studio-live/domain/event"
)

type registryStub struct {
	messageSinks      []contract.MessageSink
	conversationSinks []contract.ConversationSink
}

func (r *registryStub) Subscribe(string, contract.MessageSink) contract.Unsubscribe {
	return func() {}
}
func (r *registryStub) SubscribeAll(contract.ConversationSink) contract.Unsubscribe {
	return func() {}
}
func (r *registryStub) SinksFor(string) []contract.MessageSink { return r.messageSinks }
func (r *registryStub) AllSinks() []contract.ConversationSink  { return r.conversationSinks }

type messagesStub struct {
	messages []domain.Message
}

func (m *messagesStub) StoreMessage(domain.Message) error { return nil }
func (m *messagesStub) GetMessages(string) ([]domain.Message, error) {
	return m.messages, nil
}
func (m *messagesStub) MarkRead(string, string) (int, error) { return 0, nil }

type conversationsStub struct {
	conversations []domain.Conversation
}

func (c *conversationsStub) GetOrCreate(string, string) (domain.Conversation, bool, error) {
	return domain.Conversation{}, false, nil
}
func (c *conversationsStub) Get(string) (domain.Conversation, error) {
	return domain.Conversation{}, nil
}
func (c *conversationsStub) List() ([]domain.Conversation, error) { return c.conversations, nil }
func (c *conversationsStub) TouchLastMessage(string, string, time.Time) error {
	return nil
}

type recordingSink struct {
	snapshots chan []domain.Message
}

func (s *recordingSink) Messages(ctx context.Context, conversationID string, messages []domain.Message) error {
	s.snapshots <- messages
	return nil
}

type recordingConversationSink struct {
	snapshots chan []domain.Conversation
}

func (s *recordingConversationSink) Conversations(ctx context.Context, conversations []domain.Conversation) error {
	s.snapshots <- conversations
	return nil
}

func sentEvent(conversationID string) event.MessageSent {
	return event.MessageSent{
		ID:           uuid.New(),
		Conversation: conversationID,
		SenderID:     "alice",
		Content:      "hello",
		At:           time.Now().UTC(),
	}
}

func TestSnapshotFanout_Delivers_Full_Message_List(t *testing.T) {
	req := require.New(t)

	sink := &recordingSink{snapshots: make(chan []domain.Message, 1)}
	stored := []domain.Message{
		{ID: uuid.New(), ConversationID: "conv-1", Content: "hello"},
		{ID: uuid.New(), ConversationID: "conv-1", Content: "hi Alice"},
	}

	events := make(chan event.DomainEvent, 1)
	indexEvents := make(chan event.DomainEvent, 1)
	fanout := NewSnapshotFanout(
		slog.Default(), events, indexEvents,
		&registryStub{messageSinks: []contract.MessageSink{sink}},
		&messagesStub{messages: stored},
		&conversationsStub{},
		time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	// When a message event enters the pipeline
	events <- sentEvent("conv-1")

	// Then the sink receives the whole ordered list, not a delta
	select {
	case snapshot := <-sink.snapshots:
		req.Len(snapshot, 2)
		req.Equal("hello", snapshot[0].Content)
		req.Equal("hi Alice", snapshot[1].Content)
	case <-time.After(time.Second):
		req.Fail("sink never received a snapshot")
	}

	// And the event is forwarded to the indexer
	select {
	case evt := <-indexEvents:
		req.Equal("conv-1", evt.ConversationID())
	case <-time.After(time.Second):
		req.Fail("indexer never received the event")
	}
}

func TestSnapshotFanout_Notifies_Dashboard_Sinks(t *testing.T) {
	req := require.New(t)

	dashboard := &recordingConversationSink{snapshots: make(chan []domain.Conversation, 1)}
	conversations := []domain.Conversation{
		{ID: "conv-1", Participants: []string{"alice", domain.OperatorID}},
	}

	events := make(chan event.DomainEvent, 1)
	indexEvents := make(chan event.DomainEvent, 1)
	fanout := NewSnapshotFanout(
		slog.Default(), events, indexEvents,
		&registryStub{conversationSinks: []contract.ConversationSink{dashboard}},
		&messagesStub{},
		&conversationsStub{conversations: conversations},
		time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	events <- sentEvent("conv-1")

	select {
	case snapshot := <-dashboard.snapshots:
		req.Len(snapshot, 1)
		req.Equal("conv-1", snapshot[0].ID)
	case <-time.After(time.Second):
		req.Fail("dashboard sink never received a snapshot")
	}
}

func TestSnapshotFanout_Preserves_Event_Order(t *testing.T) {
	req := require.New(t)

	sink := &recordingSink{snapshots: make(chan []domain.Message, 2)}
	messages := &messagesStub{messages: []domain.Message{{Content: "first"}}}

	events := make(chan event.DomainEvent, 2)
	indexEvents := make(chan event.DomainEvent, 2)
	fanout := NewSnapshotFanout(
		slog.Default(), events, indexEvents,
		&registryStub{messageSinks: []contract.MessageSink{sink}},
		messages,
		&conversationsStub{},
		time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	events <- sentEvent("conv-1")

	select {
	case snapshot := <-sink.snapshots:
		req.Equal("first", snapshot[0].Content)
	case <-time.After(time.Second):
		req.Fail("first snapshot missing")
	}

	// The store grew between events; the later snapshot must reflect it
	messages.messages = []domain.Message{{Content: "first"}, {Content: "second"}}
	events <- sentEvent("conv-1")

	select {
	case snapshot := <-sink.snapshots:
		req.Len(snapshot, 2)
		req.Equal("second", snapshot[1].Content)
	case <-time.After(time.Second):
		req.Fail("second snapshot missing")
	}
}

func TestSnapshotFanout_Stops_On_Context_Cancel(t *testing.T) {
	req := require.New(t)

	events := make(chan event.DomainEvent)
	indexEvents := make(chan event.DomainEvent)
	fanout := NewSnapshotFanout(
		slog.Default(), events, indexEvents,
		&registryStub{}, &messagesStub{}, &conversationsStub{}, time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fanout.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("fanout did not stop on cancel")
	}
}
