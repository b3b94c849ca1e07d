// Package notify implements the notification publisher of spec.md §4.13:
// a Postgres LISTEN/NOTIFY backed pub/sub bus carrying error
// notifications from ingestion to the query service's SSE endpoint.
// Grounded on the teacher pack's Postgres NOTIFY/LISTEN event bus, pared
// down to the generic channel pub/sub this domain needs (the source
// bus's table-change-trigger subscriptions have no use here — nothing in
// this system streams raw row changes).
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
)

// Event is a single published message, enveloped with its channel and
// publish time so a subscriber created after Publish still knows when it
// happened.
type Event struct {
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler processes one received event. Handlers run on their own
// goroutine; a returned error is logged by the bus, never propagated.
type Handler func(ctx context.Context, event Event) error

// Bus is a PostgreSQL NOTIFY/LISTEN backed event bus.
type Bus struct {
	db       *sql.DB
	listener *pq.Listener

	mu       sync.RWMutex
	handlers map[string][]Handler

	onHandlerError func(channel string, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bus using its own listener connection to dsn, sharing no
// state with db (the caller's pooled connection used for Publish).
func New(db *sql.DB, dsn string, onHandlerError func(channel string, err error)) *Bus {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil && onHandlerError != nil {
			onHandlerError("listener", err)
		}
	}
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		db:             db,
		listener:       listener,
		handlers:       make(map[string][]Handler),
		onHandlerError: onHandlerError,
		ctx:            ctx,
		cancel:         cancel,
	}
	b.wg.Add(1)
	go b.listen()
	return b
}

// Publish sends payload, marshaled to JSON, to channel via pg_notify.
// Publish errors are the caller's to handle; §4.13 requires the
// ingestion-side publisher to swallow and log them rather than fail the
// enclosing write.
func (b *Bus) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	envelope := Event{Channel: channel, Payload: data, Timestamp: time.Now().UTC()}
	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("notify: marshal envelope: %w", err)
	}

	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, string(envelopeData)); err != nil {
		return fmt.Errorf("notify: pg_notify: %w", err)
	}
	return nil
}

// Subscribe registers handler for channel, issuing LISTEN on first
// subscription.
func (b *Bus) Subscribe(channel string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.handlers[channel]) == 0 {
		if err := b.listener.Listen(channel); err != nil {
			return fmt.Errorf("notify: listen %s: %w", channel, err)
		}
	}
	b.handlers[channel] = append(b.handlers[channel], handler)
	return nil
}

// Unsubscribe drops every handler registered for channel and issues
// UNLISTEN.
func (b *Bus) Unsubscribe(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, channel)
	if err := b.listener.Unlisten(channel); err != nil {
		return fmt.Errorf("notify: unlisten %s: %w", channel, err)
	}
	return nil
}

// Close stops the listener goroutine and closes the underlying
// connection.
func (b *Bus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.listener.Close()
}

func (b *Bus) listen() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return

		case notification := <-b.listener.Notify:
			if notification == nil {
				continue // connection lost; pq.Listener reconnects itself
			}

			var event Event
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				event = Event{Channel: notification.Channel, Payload: json.RawMessage(notification.Extra), Timestamp: time.Now().UTC()}
			}

			b.mu.RLock()
			handlers := make([]Handler, len(b.handlers[notification.Channel]))
			copy(handlers, b.handlers[notification.Channel])
			b.mu.RUnlock()

			for _, h := range handlers {
				b.invokeHandler(notification.Channel, h, event)
			}

		case <-time.After(90 * time.Second):
			b.ping()
		}
	}
}

func (b *Bus) invokeHandler(channel string, handler Handler, event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := handler(ctx, event); err != nil && b.onHandlerError != nil {
			b.onHandlerError(channel, err)
		}
	}()
}

func (b *Bus) ping() {
	go func() {
		if err := b.listener.Ping(); err != nil && b.onHandlerError != nil {
			b.onHandlerError("ping", err)
		}
	}()
}
