// Package queue defines the storage events exchanged over the message broker
// and the background consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// StorageQueueName is the durable queue carrying every storage event.
const StorageQueueName = "payments.storage"

// Event types.
const (
	TypeResyncCompleted = "storage.resynced"
	TypePaymentRecorded = "payment.recorded"
)

// StorageEvent is published when a backend has been resynchronised or a
// payment has been recorded.  Fields not relevant to Type are omitted.
type StorageEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`

	// storage.resynced
	Target   string `json:"target,omitempty"`
	Source   string `json:"source,omitempty"`
	Replayed int    `json:"replayed,omitempty"`

	// payment.recorded
	PaymentID *int64 `json:"payment_id,omitempty"` // nil when the primary was unavailable
	Total     string `json:"total,omitempty"`
}

// NewResyncCompleted builds a storage.resynced event.
func NewResyncCompleted(target, source string, replayed int, at time.Time) StorageEvent {
	return StorageEvent{
		EventID:    uuid.NewString(),
		Type:       TypeResyncCompleted,
		OccurredAt: at.UTC().Format(time.RFC3339),
		Target:     target,
		Source:     source,
		Replayed:   replayed,
	}
}

// NewPaymentRecorded builds a payment.recorded event.  total is the
// two-decimal rendering of the payment total.
func NewPaymentRecorded(id int64, hasID bool, total string, at time.Time) StorageEvent {
	ev := StorageEvent{
		EventID:    uuid.NewString(),
		Type:       TypePaymentRecorded,
		OccurredAt: at.UTC().Format(time.RFC3339),
		Total:      total,
	}
	if hasID {
		ev.PaymentID = &id
	}
	return ev
}
