package statestore

import (
	"context"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// AddSubscription subscribes userID to a registry maintainer nickname.
func (s *SQLiteStore) AddSubscription(ctx context.Context, userID int64, nickname string) (*types.Subscription, error) {
	nickname = strings.ToLower(strings.TrimSpace(nickname))
	if !types.ValidNickname(nickname) {
		return nil, errors.NewPermanentf("%w: invalid maintainer nickname %q", errors.ErrInvalidInput, nickname)
	}

	sub := &types.Subscription{
		UserID:    userID,
		Nickname:  nickname,
		Email:     types.EmailForNickname(nickname),
		CreatedAt: time.UnixMilli(s.now().UnixMilli()).UTC(),
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO maintainer_subscriptions (user_id, nickname, email, created_at)
		VALUES (?, ?, ?, ?)
	`, sub.UserID, sub.Nickname, sub.Email, sub.CreatedAt.UnixMilli())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrSubscriptionExists
		}
		return nil, errors.NewTransientf("failed to insert subscription: %w", err)
	}

	sub.ID, err = result.LastInsertId()
	if err != nil {
		return nil, errors.NewTransientf("failed to get subscription ID: %w", err)
	}

	return sub, nil
}

// RemoveSubscription deletes subscription id if it belongs to userID.
func (s *SQLiteStore) RemoveSubscription(ctx context.Context, userID int64, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM maintainer_subscriptions WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return errors.NewTransientf("failed to delete subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewTransientf("failed to read deleted row count: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// ListSubscriptions returns the subscriptions of one user.
func (s *SQLiteStore) ListSubscriptions(ctx context.Context, userID int64) ([]types.Subscription, error) {
	return s.querySubscriptions(ctx, `
		SELECT id, user_id, nickname, email, created_at
		FROM maintainer_subscriptions
		WHERE user_id = ?
		ORDER BY nickname
	`, userID)
}

// ListAllSubscriptions returns every subscription ordered by nickname.
func (s *SQLiteStore) ListAllSubscriptions(ctx context.Context) ([]types.Subscription, error) {
	return s.querySubscriptions(ctx, `
		SELECT id, user_id, nickname, email, created_at
		FROM maintainer_subscriptions
		ORDER BY nickname, user_id
	`)
}

func (s *SQLiteStore) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]types.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransientf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var sub types.Subscription
		var createdAt int64
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Nickname, &sub.Email, &createdAt); err != nil {
			return nil, errors.NewTransientf("failed to scan subscription: %w", err)
		}
		sub.CreatedAt = time.UnixMilli(createdAt).UTC()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("error iterating subscription rows: %w", err)
	}

	return subs, nil
}

// RecordNotification appends n to the notification history and sets its ID.
// A zero SentAt is filled from the store clock.
func (s *SQLiteStore) RecordNotification(ctx context.Context, n *types.Notification) error {
	if n == nil || n.Identifier == "" {
		return errors.NewPermanentf("notification identifier cannot be empty")
	}
	if n.Kind != types.NotificationManual && n.Kind != types.NotificationScheduled {
		return errors.NewPermanentf("unknown notification kind %q", n.Kind)
	}
	if n.SentAt.IsZero() {
		n.SentAt = s.now()
	}
	n.SentAt = time.UnixMilli(n.SentAt.UnixMilli()).UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_history (identifier, outdated_count, notified_count, kind, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.Identifier, n.OutdatedCount, n.NotifiedCount, n.Kind, n.SentAt.UnixMilli())
	if err != nil {
		return errors.NewTransientf("failed to insert notification: %w", err)
	}

	n.ID, err = result.LastInsertId()
	if err != nil {
		return errors.NewTransientf("failed to get notification ID: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent notifications, newest first.
// An empty identifier lists all maintainers. A limit <= 0 means 100.
func (s *SQLiteStore) ListNotifications(ctx context.Context, identifier string, limit int) ([]types.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, identifier, outdated_count, notified_count, kind, sent_at FROM notification_history`
	var args []interface{}
	if identifier != "" {
		query += ` WHERE identifier = ?`
		args = append(args, identifier)
	}
	query += ` ORDER BY sent_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransientf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []types.Notification
	for rows.Next() {
		var n types.Notification
		var sentAt int64
		if err := rows.Scan(&n.ID, &n.Identifier, &n.OutdatedCount, &n.NotifiedCount, &n.Kind, &sentAt); err != nil {
			return nil, errors.NewTransientf("failed to scan notification: %w", err)
		}
		n.SentAt = time.UnixMilli(sentAt).UTC()
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}
