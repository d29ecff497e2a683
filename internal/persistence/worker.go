package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mn-coding-cop/EigenLabsTask/internal/observability"
	"github.com/rs/zerolog"
)

// Output mirrors the engine's output shape to avoid an import cycle. The
// orchestrator (cmd/escrowd) bridges engine outputs into rows.
type Output struct {
	EventRow EventRow
	TradeRow *TradeRow // non-nil only for item purchases
}

// Worker drains the persist channel and batch-writes to Postgres. The
// engine sends on this channel with a BLOCKING send, so if the worker
// falls behind, the engine stalls rather than lose an event.
type Worker struct {
	writer       *EventLogWriter
	inputChan    <-chan Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run drains the channel, flushing when the batch fills or the timeout
// expires. Blocks until ctx is cancelled; a final flush runs on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	events := make([]EventRow, 0, w.batchSize)
	trades := make([]TradeRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	flush := func(flushCtx context.Context) {
		if len(events) == 0 {
			return
		}
		if err := w.flushWithRetry(flushCtx, events, trades); err != nil {
			w.log.Error().Err(err).Int("events", len(events)).Msg("batch flush failed")
		}
		events = events[:0]
		trades = trades[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.Background())
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				flush(context.Background())
				return nil
			}

			events = append(events, out.EventRow)
			if out.TradeRow != nil {
				trades = append(trades, *out.TradeRow)
			}

			if len(events) >= w.batchSize {
				flush(ctx)
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			flush(ctx)
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// a batch: it retries until the write succeeds or, on shutdown, attempts
// one final flush with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, trades []TradeRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Int("events", len(events)).Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), events, trades); err != nil {
					return fmt.Errorf("final flush on shutdown: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, events, trades); err == nil {
			return nil
		} else if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, trades []TradeRow) error {
	start := time.Now()

	if err := w.writer.WriteEventBatch(ctx, events); err != nil {
		return err
	}
	if err := w.writer.WriteTradeBatch(ctx, trades); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistTradesWritten.Add(float64(len(trades)))
		w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
	}
	return nil
}
