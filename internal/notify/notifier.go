// Package notify is the outbound email boundary. Services hand a Message to
// the queue and move on; a worker drains the queue and calls the configured
// Notifier. Delivery failures are logged, never propagated back to the
// request that triggered them.
package notify

import "context"

// Message is one outbound notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Notifier sends a message to all recipients. Implementations must treat the
// send as best-effort; the caller only needs failures to be observable.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
