// Package worker consumes ledger recompute requests from AMQP and rebuilds
// the affected user's balance ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/sheets"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Recomputer rebuilds a user's ledger around an anchor month.
type Recomputer interface {
	UpdateBalances(ctx context.Context, userID string, anchor core.Date) error
}

// LedgerLister reads back the persisted ledger rows for mirroring.
type LedgerLister interface {
	ListLedgerEntries(ctx context.Context, userID string) ([]core.BalanceLedgerEntry, error)
}

// RecomputeWorker processes recompute messages one at a time. The mirror is
// optional; when nil the worker only updates the local ledger.
type RecomputeWorker struct {
	updater Recomputer
	ledger  LedgerLister
	mirror  sheets.LedgerMirror
}

func NewRecomputeWorker(updater Recomputer, ledger LedgerLister, mirror sheets.LedgerMirror) *RecomputeWorker {
	return &RecomputeWorker{
		updater: updater,
		ledger:  ledger,
		mirror:  mirror,
	}
}

// HandleMessage recomputes the ledger for the message's user and anchor month,
// then mirrors the fresh rows when a mirror is configured.
func (w *RecomputeWorker) HandleMessage(ctx context.Context, msg *amqp.RecomputeMessage) error {
	anchor := core.NewDate(msg.Year, msg.Month, 1)

	slog.InfoContext(ctx, "Processing recompute message",
		"user_id", msg.UserID,
		"year", msg.Year,
		"month", msg.Month)

	if err := w.updater.UpdateBalances(ctx, msg.UserID, anchor); err != nil {
		return fmt.Errorf("update balances: %w", err)
	}

	if w.mirror == nil {
		return nil
	}
	entries, err := w.ledger.ListLedgerEntries(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("list ledger for mirror: %w", err)
	}
	if err := w.mirror.MirrorLedger(ctx, msg.UserID, entries); err != nil {
		return fmt.Errorf("mirror ledger: %w", err)
	}
	return nil
}

// Run consumes deliveries until the context is cancelled or the channel
// closes. Failed messages are nacked without requeue so a poisoned payload
// cannot wedge the queue.
func (w *RecomputeWorker) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.handleDelivery(ctx, delivery)
		}
	}
}

func (w *RecomputeWorker) handleDelivery(ctx context.Context, delivery amqp091.Delivery) {
	msg, err := amqp.RecomputeMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Discarding malformed recompute message", "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	if err := w.HandleMessage(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Recompute failed",
			"user_id", msg.UserID,
			"year", msg.Year,
			"month", msg.Month,
			"error", err)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}
