package notify

import (
	"context"
	"log/slog"
)

// Queue is the explicit handoff between request paths and email delivery.
// Enqueue never blocks: when the buffer is full the message is dropped and
// logged, which matches the best-effort contract for notifications.
type Queue struct {
	inbox  chan Message
	logger *slog.Logger
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{inbox: make(chan Message, size), logger: logger}
}

// Enqueue hands a message to the worker. Returns immediately.
func (q *Queue) Enqueue(msg Message) {
	select {
	case q.inbox <- msg:
	default:
		q.logger.Warn("notification queue full, dropping message",
			"subject", msg.Subject,
			"recipients", len(msg.To),
		)
	}
}

// Worker consumes the queue and hands each message to the notifier. Send
// failures are logged and the worker keeps draining; one bad recipient must
// not wedge the queue.
type Worker struct {
	queue    *Queue
	notifier Notifier
	logger   *slog.Logger
}

func NewWorker(queue *Queue, notifier Notifier, logger *slog.Logger) *Worker {
	return &Worker{queue: queue, notifier: notifier, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-w.queue.inbox:
			if w.notifier == nil {
				w.logger.InfoContext(ctx, "no notifier configured, dropping message",
					"subject", msg.Subject,
					"recipients", len(msg.To),
				)
				continue
			}
			if err := w.notifier.Send(ctx, msg); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"subject", msg.Subject,
					"recipients", len(msg.To),
					"error", err,
				)
			}
		}
	}
}
