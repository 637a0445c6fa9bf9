package runtime

import (
	"sync"

	"github.com/google/uuid"

	"studio-live/contract"
)

// Registry tracks live subscriptions: per-conversation message sinks and
// dashboard-wide conversation sinks. Each Subscribe call hands back an
// unsubscribe handle; forgetting to call it leaks the subscription, which is
// why the handle is the only way to cancel (no global reset).
type Registry struct {
	mu                sync.RWMutex
	conversationSinks map[string]map[string]contract.MessageSink
	allSinks          map[string]contract.ConversationSink
}

func NewRegistry() *Registry {
	return &Registry{
		conversationSinks: make(map[string]map[string]contract.MessageSink),
		allSinks:          make(map[string]contract.ConversationSink),
	}
}

// Subscribe attaches a sink to one conversation. The returned handle is
// idempotent: calling it twice removes the subscription once.
func (r *Registry) Subscribe(conversationID string, sink contract.MessageSink) contract.Unsubscribe {
	id := uuid.NewString()
	r.mu.Lock()
	if _, ok := r.conversationSinks[conversationID]; !ok {
		r.conversationSinks[conversationID] = make(map[string]contract.MessageSink)
	}
	r.conversationSinks[conversationID][id] = sink
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sinks, ok := r.conversationSinks[conversationID]; ok {
			delete(sinks, id)
			// No empty sets left behind, they would accumulate forever.
			if len(sinks) == 0 {
				delete(r.conversationSinks, conversationID)
			}
		}
	}
}

// SubscribeAll attaches a dashboard sink observing every conversation.
func (r *Registry) SubscribeAll(sink contract.ConversationSink) contract.Unsubscribe {
	id := uuid.NewString()
	r.mu.Lock()
	r.allSinks[id] = sink
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.allSinks, id)
	}
}

// SinksFor returns the active sinks of one conversation.
func (r *Registry) SinksFor(conversationID string) []contract.MessageSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.MessageSink, 0, len(r.conversationSinks[conversationID]))
	for _, sink := range r.conversationSinks[conversationID] {
		sinks = append(sinks, sink)
	}
	return sinks
}

// AllSinks returns the active dashboard sinks.
func (r *Registry) AllSinks() []contract.ConversationSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.ConversationSink, 0, len(r.allSinks))
	for _, sink := range r.allSinks {
		sinks = append(sinks, sink)
	}
	return sinks
}
