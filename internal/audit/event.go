// Package audit publishes pipeline events for downstream consumers. Events are
// informational: a failed publish is logged and never fails the pipeline.
package audit

import (
	"context"
	"time"
)

// Type names a pipeline event.
type Type string

const (
	PollCompleted         Type = "poll.completed"
	PollFailed            Type = "poll.failed"
	ConsentRegistered     Type = "consent.registered"
	ConsentRegisterFailed Type = "consent.register_failed"
	// ConsentRemoveFailed means the downstream accepted the consent but the
	// staged record could not be cleared.
	ConsentRemoveFailed Type = "consent.remove_failed"
)

// Event is one pipeline fact. Optional fields are omitted from the wire form.
type Event struct {
	Type          Type      `json:"type"`
	TenantID      string    `json:"tenant_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Partition     string    `json:"partition,omitempty"`
	ResourceID    string    `json:"resource_id,omitempty"`
	Version       string    `json:"version,omitempty"`
	Cursor        *int64    `json:"cursor,omitempty"`
	Staged        int       `json:"staged,omitempty"`
	Status        int       `json:"status,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
