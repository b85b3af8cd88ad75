package lifecycle

import (
	"context"
	"sort"

	"github.com/Ritabrata777/CivicLens/models"
)

// NotificationsFor projects a user's activity feed from their issues and the
// issues' own history. There is no notification storage to drift out of sync:
// an issue whose status moved past Pending yields one entry, stamped with its
// most recent history event.
func (e *Engine) NotificationsFor(ctx context.Context, userID string) ([]models.Notification, error) {
	issues, err := e.store.ListIssuesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	notifications := []models.Notification{}
	for _, issue := range issues {
		if issue.Status == models.Pending {
			continue
		}
		events, err := e.store.EventsForIssue(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			continue
		}
		latest := events[len(events)-1]
		notifications = append(notifications, models.Notification{
			IssueID:   issue.ID,
			Title:     issue.Title,
			Status:    issue.Status,
			Timestamp: latest.Timestamp,
		})
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})
	return notifications, nil
}
