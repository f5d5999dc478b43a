package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventPurchaseStarted  EventType = "wallet.credits.purchase.started"
	EventCreditsPurchased EventType = "wallet.credits.purchased"
	EventPurchaseFailed   EventType = "wallet.credits.purchase.failed"
	EventCreditsSpent     EventType = "wallet.credits.spent"
	EventGiftPurchased    EventType = "wallet.gift.purchased"
	EventGiftSent         EventType = "wallet.gift.sent"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateWallet  AggregateType = "wallet"
	AggregatePayment AggregateType = "payment"
	AggregateGift    AggregateType = "gift"
)

// OutboxDraft is the payload written to the event_outbox table.
// SeqID is only populated on rows read back by the relay.
type OutboxDraft struct {
	SeqID         int64           `json:"-"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Topic is the Kafka topic an outbox event is relayed to.
func (d OutboxDraft) Topic() string {
	return "pairly." + string(d.AggregateType) + "." + string(d.EventType)
}

// GuardResult is the outcome of a guard check.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
