package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes event envelopes and purchase records to Postgres
// using multi-row INSERT batches. The event log is append-only; conflicts
// on sequence are ignored so a replayed batch is harmless.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is a row in escrow.events.
type EventRow struct {
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

// TradeRow is a row in escrow.trades, one per item purchase.
type TradeRow struct {
	Sequence  int64
	ItemID    int64
	Price     int64
	Buyer     string
	Seller    string
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of envelopes to escrow.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO escrow.events
		(sequence, event_type, payload, state_hash, prev_hash, ts)
		VALUES `)

	args := make([]any, 0, len(events)*6)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, e.Sequence, e.EventType, e.Payload, e.StateHash, e.PrevHash, e.Timestamp)
	}
	sb.WriteString(" ON CONFLICT (sequence) DO NOTHING")

	if _, err := w.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("write event batch: %w", err)
	}
	return nil
}

// WriteTradeBatch writes a batch of purchase records to escrow.trades.
func (w *EventLogWriter) WriteTradeBatch(ctx context.Context, trades []TradeRow) error {
	if len(trades) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO escrow.trades
		(sequence, item_id, price, buyer, seller, ts)
		VALUES `)

	args := make([]any, 0, len(trades)*6)
	for i, t := range trades {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, t.Sequence, t.ItemID, t.Price, t.Buyer, t.Seller, t.Timestamp)
	}
	sb.WriteString(" ON CONFLICT (sequence) DO NOTHING")

	if _, err := w.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("write trade batch: %w", err)
	}
	return nil
}
