// Package runtime handles event propagation and background workers.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"studio-live/contract"
	"studio-live/domain/event"
	"studio-live/observability"
	"studio-live/repositories"
	"studio-live/runtime/workers"
	"studio-live/search"
)

// Orchestrator owns the event channels and the supervised worker set:
// the snapshot fanout, the search indexer and the health worker.
type Orchestrator struct {
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       *Registry
	monitor        *observability.Monitor
	messages       repositories.IMessageRepository
	conversations  repositories.IConversationRepository
	index          *search.MessageIndex
	events         chan event.DomainEvent
	indexEvents    chan event.DomainEvent
	sinkTimeout    time.Duration
	metricInterval time.Duration
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor *workers.Supervisor,
	registry *Registry,
	monitor *observability.Monitor,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	index *search.MessageIndex,
	bufferSize int,
	sinkTimeout, metricInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		monitor:        monitor,
		messages:       messages,
		conversations:  conversations,
		index:          index,
		events:         make(chan event.DomainEvent, bufferSize),
		indexEvents:    make(chan event.DomainEvent, bufferSize),
		sinkTimeout:    sinkTimeout,
		metricInterval: metricInterval,
	}
}

// Registry exposes the subscription registry to the API layer.
func (o *Orchestrator) Registry() contract.IRegistry { return o.registry }

// Publish hands a domain event to the fanout pipeline. Non-blocking: when the
// buffer is full the event is dropped and subscribers miss one snapshot; the
// next event heals them since snapshots always carry the full state.
func (o *Orchestrator) Publish(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	default:
		o.log.Warn("Event channel full, dropping snapshot trigger", "conversation", evt.ConversationID())
	}
}

// Start registers all workers with the supervisor and runs them.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanout := workers.NewSnapshotFanout(
		o.log, o.events, o.indexEvents, o.registry,
		o.messages, o.conversations, o.sinkTimeout,
	)
	indexer := workers.NewIndexerWorker(o.log, o.indexEvents, o.index)
	health := workers.NewHealthWorker(o.log, o.monitor, o.metricInterval)

	o.supervisor.Add(fanout, indexer, health)

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown by canceling the supervised context.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
