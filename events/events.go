package events

import (
	"context"
	"sync"

	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeTransactionAppended EventType = "transaction_appended"
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeUserCreated         EventType = "user_created"
	EventTypeRiskLevelChanged    EventType = "risk_level_changed"
	EventTypeProjectionRepaired  EventType = "projection_repaired"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TransactionAppendedEvent is emitted once a ledger entry is committed
type TransactionAppendedEvent struct {
	Transaction models.Transaction `json:"transaction"`
}

func (e TransactionAppendedEvent) Type() EventType {
	return EventTypeTransactionAppended
}

// BalanceChangeEvent represents a change of a user's cached balance
type BalanceChangeEvent struct {
	UserID          uuid.UUID              `json:"userId"`
	TransactionID   uuid.UUID              `json:"transactionId"`
	OldBalance      decimal.Decimal        `json:"oldBalance"`
	NewBalance      decimal.Decimal        `json:"newBalance"`
	TransactionType models.TransactionType `json:"transactionType"`
	ChangeAmount    decimal.Decimal        `json:"changeAmount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new signup
type UserCreatedEvent struct {
	UserID      uuid.UUID  `json:"userId"`
	Username    string     `json:"username"`
	AffiliateID *uuid.UUID `json:"affiliateId,omitempty"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// RiskLevelChangedEvent is emitted when a stored risk tier is refreshed to a new value
type RiskLevelChangedEvent struct {
	UserID   uuid.UUID        `json:"userId"`
	OldLevel models.RiskLevel `json:"oldLevel"`
	NewLevel models.RiskLevel `json:"newLevel"`
}

func (e RiskLevelChangedEvent) Type() EventType {
	return EventTypeRiskLevelChanged
}

// ProjectionRepairedEvent is emitted when reconciliation overwrites a drifted cache
type ProjectionRepairedEvent struct {
	UserID uuid.UUID                `json:"userId"`
	Before models.BalanceProjection `json:"before"`
	After  models.BalanceProjection `json:"after"`
}

func (e ProjectionRepairedEvent) Type() EventType {
	return EventTypeProjectionRepaired
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	inflight sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every given event type
func (b *Bus) SubscribeAll(eventTypes []EventType, handler Handler) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines; a panicking handler is logged and does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	b.inflight.Add(len(handlers))
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Wait blocks until every handler dispatched so far has returned
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for a commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits the pending events; called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events")

	// The commit is done, so handlers must not inherit a request context that may already be cancelled
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops the pending events; called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
