package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/daimoniac/pkgwatch/internal/types"
)

// ErrSubscriptionExists is returned by AddSubscription when the user already follows the nickname.
var ErrSubscriptionExists = errors.New("subscription already exists")

// ErrSubscriptionNotFound is returned by RemoveSubscription when no matching subscription exists.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// CacheStore persists merged package records per maintainer identifier.
type CacheStore interface {
	// GetIfFresh returns the cached records for identifier fetched strictly within maxAge.
	// The boolean is false on a miss. A fresh refresh that produced no records is a hit
	// with an empty, non-nil slice. A non-empty repo restricts the result to that repository.
	GetIfFresh(ctx context.Context, identifier string, maxAge time.Duration, repo string) ([]types.PackageRecord, bool, error)

	// ReplaceAll atomically replaces every cached record for identifier.
	ReplaceAll(ctx context.Context, identifier string, records []types.PackageRecord) error

	// LastRefreshTime returns the newest fetch time for identifier, or nil if nothing is cached.
	LastRefreshTime(ctx context.Context, identifier string, repo string) (*time.Time, error)

	// PruneOlderThan removes records fetched before now minus retention and returns how many were removed.
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// SubscriptionStore persists user subscriptions to registry maintainers.
type SubscriptionStore interface {
	AddSubscription(ctx context.Context, userID int64, nickname string) (*types.Subscription, error)
	RemoveSubscription(ctx context.Context, userID int64, id int64) error
	ListSubscriptions(ctx context.Context, userID int64) ([]types.Subscription, error)

	// ListAllSubscriptions returns every subscription, ordered by nickname.
	ListAllSubscriptions(ctx context.Context) ([]types.Subscription, error)
}

// NotificationStore keeps the history of delivered refresh results.
type NotificationStore interface {
	RecordNotification(ctx context.Context, n *types.Notification) error
	ListNotifications(ctx context.Context, identifier string, limit int) ([]types.Notification, error)
}

// StateStore is the full persistence surface used by the service.
type StateStore interface {
	CacheStore
	SubscriptionStore
	NotificationStore
}

// StateStoreQuery exposes aggregate reads used by the metrics collector.
type StateStoreQuery interface {
	CacheSummary(ctx context.Context) (*CacheSummary, error)
}

// CacheSummary is a point-in-time view of the store contents.
type CacheSummary struct {
	RecordsByStatus   map[types.Status]int
	Identifiers       int
	Subscriptions     int
	Notifications     int
	OldestRefreshedAt *time.Time
}
