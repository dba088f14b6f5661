/*
events.go - Domain events and notification side-channel

PURPOSE:
  Every successful mutation emits one Event to an EventSink (audit,
  metrics, webhooks) and invokes a Notifier (user-facing messages).
  Both are fire-and-forget from the engine's point of view: a failing
  sink never fails the mutation that already committed.
*/
package wallet

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Event describes a committed mutation.
type Event struct {
	Type        TxType
	UserID      UserID
	Amount      decimal.Decimal
	Refundable  bool
	FreeCut     decimal.Decimal // portion of a debit taken from free balance
	Category    CategoryID
	Description string
}

// EventSink receives domain events after a mutation commits.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// Notifier is the user-facing side channel (email, message, webhook).
type Notifier interface {
	Notify(ctx context.Context, tx TransactionRecord)
}

// =============================================================================
// DEFAULT IMPLEMENTATIONS
// =============================================================================

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, ev Event) {
	log.Printf("[Wallet] %s user=%s amount=%s refundable=%t freeCut=%s category=%d %s",
		ev.Type, ev.UserID, ev.Amount, ev.Refundable, ev.FreeCut, ev.Category, ev.Description)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, TransactionRecord) {}
