package worker

import (
	"time"

	"github.com/daimoniac/pkgwatch/internal/policy"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// buildNotification constructs the history row for one processed task.
func buildNotification(task *queue.RefreshTask, decision *policy.Decision, sentAt time.Time) *types.Notification {
	kind := task.Reason
	if kind != types.NotificationManual {
		kind = types.NotificationScheduled
	}

	return &types.Notification{
		Identifier:    task.Identifier,
		OutdatedCount: decision.OutdatedCount,
		NotifiedCount: decision.NotifiedCount(),
		Kind:          kind,
		SentAt:        sentAt.UTC(),
	}
}
