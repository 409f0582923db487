// Package natsbridge forwards committed domain events to NATS so other
// services can follow the ledger without polling the database.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casinometrics/events"

	log "github.com/sirupsen/logrus"
)

// Publisher sends a payload to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Envelope is the wire format of a forwarded event
type Envelope struct {
	Type       events.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	Payload    events.Event     `json:"payload"`
}

// ForwardedEvents lists the event types the forwarder subscribes to
var ForwardedEvents = []events.EventType{
	events.EventTypeTransactionAppended,
	events.EventTypeBalanceChange,
	events.EventTypeUserCreated,
	events.EventTypeRiskLevelChanged,
	events.EventTypeProjectionRepaired,
}

// Forwarder relays bus events to a publisher
type Forwarder struct {
	publisher Publisher
	now       func() time.Time
}

// NewForwarder creates a forwarder publishing through p
func NewForwarder(p Publisher) *Forwarder {
	return &Forwarder{publisher: p, now: time.Now}
}

// Attach subscribes the forwarder to every forwarded event type on the bus
func (f *Forwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(ForwardedEvents, f.handle)
}

// Subject returns the subject an event type is published on
func Subject(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

func (f *Forwarder) handle(ctx context.Context, event events.Event) {
	if err := f.Forward(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event to NATS")
	}
}

// Forward encodes and publishes a single event
func (f *Forwarder) Forward(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(Envelope{
		Type:       event.Type(),
		OccurredAt: f.now().UTC(),
		Payload:    event,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type(), err)
	}

	return f.publisher.Publish(ctx, Subject(event.Type()), data)
}
