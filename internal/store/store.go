// Package store persists notification records in Postgres. Reads and writes
// go through prepared statements registered by internal/db.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubsync/notifier/internal/notification"
)

// Store is the pgx-backed notification CRUD store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the notification for id, or notification.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (notification.Notification, error) {
	row := s.pool.QueryRow(ctx, "notification_get", id)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return notification.Notification{}, notification.ErrNotFound
	}
	if err != nil {
		return notification.Notification{}, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

// Put writes the full record, replacing any previous one.
func (s *Store) Put(ctx context.Context, n notification.Notification) error {
	var survey []byte
	if n.Survey != nil {
		var err error
		if survey, err = json.Marshal(n.Survey); err != nil {
			return fmt.Errorf("marshal survey: %w", err)
		}
	}
	var periodicType, triggerID *string
	if n.Schedule.PeriodicType != "" {
		periodicType = &n.Schedule.PeriodicType
	}
	if n.Schedule.TriggerID != "" {
		triggerID = &n.Schedule.TriggerID
	}
	_, err := s.pool.Exec(ctx, "notification_put",
		n.ID, n.Name, string(n.Schedule.Kind), n.IsReminder,
		n.TeamIDs, n.PlayerIDs, n.CoachIDs, survey,
		n.Schedule.BringDatetime, periodicType, triggerID,
	)
	if err != nil {
		return fmt.Errorf("put notification %s: %w", n.ID, err)
	}
	return nil
}

// Delete removes the record for id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "notification_delete", id); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

// List returns all stored notifications; used by the catch-up resync.
func (s *Store) List(ctx context.Context) ([]notification.Notification, error) {
	rows, err := s.pool.Query(ctx, "notification_list")
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var all []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		all = append(all, n)
	}
	return all, rows.Err()
}

func scanNotification(row pgx.Row) (notification.Notification, error) {
	var (
		n            notification.Notification
		kind         string
		survey       []byte
		bring        time.Time
		periodicType *string
		triggerID    *string
	)
	err := row.Scan(
		&n.ID, &n.Name, &kind, &n.IsReminder,
		&n.TeamIDs, &n.PlayerIDs, &n.CoachIDs, &survey,
		&bring, &periodicType, &triggerID,
	)
	if err != nil {
		return notification.Notification{}, err
	}
	n.Schedule = notification.Schedule{
		Kind:          notification.Kind(kind),
		BringDatetime: bring.UTC(),
	}
	if periodicType != nil {
		n.Schedule.PeriodicType = *periodicType
	}
	if triggerID != nil {
		n.Schedule.TriggerID = *triggerID
	}
	if len(survey) > 0 {
		n.Survey = &notification.Survey{}
		if err := json.Unmarshal(survey, n.Survey); err != nil {
			return notification.Notification{}, fmt.Errorf("unmarshal survey: %w", err)
		}
	}
	return n, nil
}
