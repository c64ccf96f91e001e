// Command notifyctl is the Clubsync Notifier operations CLI.
//
// Usage:
//
//	notifyctl trigger --id match-start --event ev-123
//	notifyctl apply --id n-42 notification.json
//	notifyctl delete --id n-42
//	notifyctl validate notification.json
//	notifyctl prune --retention 2160h
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clubsync/notifier/internal/config"
	"github.com/clubsync/notifier/internal/db"
	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/scheduler"
	"github.com/clubsync/notifier/internal/store"
	"github.com/clubsync/notifier/internal/trigger"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "notifyctl",
		Short: "Clubsync Notifier operations CLI",
	}

	root.AddCommand(triggerCmd())
	root.AddCommand(applyCmd())
	root.AddCommand(deleteCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(pruneCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// trigger command
// --------------------------------------------------------------------------

func triggerCmd() *cobra.Command {
	var triggerID, eventID, at string
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Raise a trigger event via pg_notify",
		RunE: func(cmd *cobra.Command, args []string) error {
			if triggerID == "" {
				return fmt.Errorf("--id is required")
			}
			ev := scheduler.TriggerEvent{
				TriggerID:  triggerID,
				EventID:    eventID,
				OccurredAt: time.Now().UTC(),
			}
			if ev.EventID == "" {
				ev.EventID = uuid.NewString()
			}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				ev.OccurredAt = t.UTC()
			}
			return runOp(func(ctx context.Context, cfg *config.Config) error {
				conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect: %w", err)
				}
				defer conn.Close(context.Background())

				if err := trigger.Notify(ctx, conn, ev); err != nil {
					return err
				}
				logger.Info("Trigger event raised",
					"trigger_id", ev.TriggerID, "event_id", ev.EventID, "occurred_at", ev.OccurredAt)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&triggerID, "id", "", "Trigger class id")
	cmd.Flags().StringVar(&eventID, "event", "", "Event id (generated when empty)")
	cmd.Flags().StringVar(&at, "at", "", "Event timestamp, RFC3339 (default now)")
	return cmd
}

// --------------------------------------------------------------------------
// apply / delete / validate commands
// --------------------------------------------------------------------------

func applyCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "apply [file]",
		Short: "Create or replace a notification from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			return runOp(func(ctx context.Context, cfg *config.Config) error {
				req, err := loadRequest(args[0], cfg)
				if err != nil {
					return err
				}
				pool, err := db.New(ctx, cfg)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()

				s := store.New(pool.Pool)
				prev, err := s.Get(ctx, id)
				var prevPtr *notification.Notification
				if err == nil {
					prevPtr = &prev
				} else if !errors.Is(err, notification.ErrNotFound) {
					return err
				}
				n := req.ToNotification(id, prevPtr)
				if err := s.Put(ctx, n); err != nil {
					return err
				}
				logger.Info("Notification stored; the server arms it on its next resync",
					"notification_id", id, "kind", n.Schedule.Kind)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Notification id")
	return cmd
}

func deleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			return runOp(func(ctx context.Context, cfg *config.Config) error {
				pool, err := db.New(ctx, cfg)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()

				if err := store.New(pool.Pool).Delete(ctx, id); err != nil {
					return err
				}
				logger.Info("Notification deleted; the server deregisters it on its next resync",
					"notification_id", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Notification id")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a notification JSON file against the contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(func(ctx context.Context, cfg *config.Config) error {
				if _, err := loadRequest(args[0], cfg); err != nil {
					return err
				}
				logger.Info("Notification is valid", "file", args[0])
				return nil
			})
		},
	}
}

func loadRequest(path string, cfg *config.Config) (notification.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return notification.Request{}, fmt.Errorf("read %s: %w", path, err)
	}
	var req notification.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return notification.Request{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := req.Validate(cfg.UnitKnown); err != nil {
		return notification.Request{}, err
	}
	return req, nil
}

// --------------------------------------------------------------------------
// prune command
// --------------------------------------------------------------------------

func pruneCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Purge dispatch ledger records past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(func(ctx context.Context, cfg *config.Config) error {
				pool, err := db.New(ctx, cfg)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()

				removed, err := ledger.NewPG(pool.Pool).Prune(ctx, int(retention.Hours()))
				if err != nil {
					return err
				}
				logger.Info("Ledger pruned", "removed", removed, "retention", retention)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 90*24*time.Hour, "Keep records newer than this")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runOp handles config loading and context cancellation.
func runOp(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return fn(ctx, cfg)
}
