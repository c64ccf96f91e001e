// Package trigger provides a Postgres LISTEN/NOTIFY consumer for external
// trigger events. It holds a dedicated pgx connection (not from the pool)
// listening on the `trigger_events` channel.
//
// Any collaborator with database access can raise an event with
// pg_notify('trigger_events', json); the HTTP ingestion endpoint is the
// other entry path into the scheduling core.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clubsync/notifier/internal/scheduler"
)

// Channel is the NOTIFY channel trigger events arrive on.
const Channel = "trigger_events"

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Sink consumes trigger events; the scheduling core implements it.
type Sink interface {
	HandleTriggerEvent(ctx context.Context, ev scheduler.TriggerEvent)
}

// payload is the JSON shape of pg_notify('trigger_events', ...).
type payload struct {
	TriggerID  string     `json:"triggerId"`
	EventID    string     `json:"eventId"`
	OccurredAt *time.Time `json:"occurredAt"`
}

// Start opens a dedicated connection and listens on the trigger_events
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, sink Sink, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, sink, logger)
		if ctx.Err() != nil {
			logger.Info("trigger listener stopped (context cancelled)")
			return
		}

		logger.Error("trigger listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, sink Sink, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("trigger listener connected", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var p payload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			logger.Warn("failed to parse trigger event",
				"payload", n.Payload, "error", err)
			continue
		}
		if p.TriggerID == "" {
			logger.Warn("trigger event without triggerId dropped", "payload", n.Payload)
			continue
		}

		ev := scheduler.TriggerEvent{
			TriggerID:  p.TriggerID,
			EventID:    p.EventID,
			OccurredAt: time.Now().UTC(),
		}
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		if p.OccurredAt != nil {
			ev.OccurredAt = p.OccurredAt.UTC()
		}

		// Hand off without blocking the listen loop.
		go sink.HandleTriggerEvent(ctx, ev)
	}
}

// Notify raises a trigger event on the channel; used by the operations CLI.
func Notify(ctx context.Context, conn *pgx.Conn, ev scheduler.TriggerEvent) error {
	occurred := ev.OccurredAt
	body, err := json.Marshal(payload{
		TriggerID:  ev.TriggerID,
		EventID:    ev.EventID,
		OccurredAt: &occurred,
	})
	if err != nil {
		return fmt.Errorf("marshal trigger event: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, string(body)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}
