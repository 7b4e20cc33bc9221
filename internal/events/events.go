// Package events publishes customer lifecycle events to a message broker.
// Publishing is best-effort: request handling never fails on a broker error.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Channel carries every customer lifecycle event.
const Channel = "customer-events"

// Event types.
const (
	TypeCustomerRegistered = "customer.registered"
	TypeCustomerDeleted    = "customer.deleted"
)

// CustomerEvent is the payload published for a lifecycle change.
type CustomerEvent struct {
	Type       string    `json:"type"`
	CustomerID int64     `json:"customer_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Backend defines the broker-agnostic publish operations.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher serializes customer events onto a backend. A nil Publisher is
// valid and drops everything, so broker wiring stays optional.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// CustomerRegistered publishes a registration event.
func (p *Publisher) CustomerRegistered(ctx context.Context, customerID int64, email string) error {
	return p.publish(ctx, CustomerEvent{
		Type:       TypeCustomerRegistered,
		CustomerID: customerID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	})
}

// CustomerDeleted publishes a deletion event.
func (p *Publisher) CustomerDeleted(ctx context.Context, customerID int64, email string) error {
	return p.publish(ctx, CustomerEvent{
		Type:       TypeCustomerDeleted,
		CustomerID: customerID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	})
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}

func (p *Publisher) publish(ctx context.Context, event CustomerEvent) error {
	if p == nil || p.backend == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, Channel, data, map[string]string{"type": event.Type})
	return err
}
