package audit

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink receives outbox batches, typically Kafka.
type Sink interface {
	Send(ctx context.Context, events []Event) error
}

// Worker drains the outbox into a sink on a fixed interval. Events are only
// marked published after the sink accepts them, so delivery is at-least-once.
type Worker struct {
	outbox   Outbox
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type WorkerOption func(*Worker)

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) { w.batch = n }
}

func NewWorker(outbox Outbox, sink Sink, opts ...WorkerOption) *Worker {
	w := &Worker{
		outbox:   outbox,
		sink:     sink,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: 5 * time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	events, err := w.outbox.NextBatch(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := w.sink.Send(ctx, events); err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	if err := w.outbox.MarkPublished(ctx, ids); err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "audit events shipped", "count", len(events))
	return nil
}
