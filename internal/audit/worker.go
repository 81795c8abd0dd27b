package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned when the worker cannot accept another event.
var ErrBufferFull = errors.New("audit buffer full")

// Worker decouples publishing from the request path: Publish enqueues and Run
// drains the queue into the sink.
type Worker struct {
	sink   Publisher
	inbox  chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, size int, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: make(chan Event, size), logger: logger}
}

// Publish enqueues e without blocking.
func (w *Worker) Publish(_ context.Context, e Event) error {
	select {
	case w.inbox <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers events until ctx is done, then flushes what is already queued
// using a context that is no longer cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case e := <-w.inbox:
			w.deliver(ctx, e)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case e := <-w.inbox:
			w.deliver(ctx, e)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, e Event) {
	if err := w.sink.Publish(ctx, e); err != nil {
		w.logger.WarnContext(ctx, "audit publish failed",
			"event_type", string(e.Type),
			"tenant_id", e.TenantID,
			"error", err.Error(),
		)
	}
}
