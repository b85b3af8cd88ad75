package models

import (
	"time"
)

// Upvote records that a user supported an issue. The pair (issue, user) is
// unique; the backing store enforces it as a hard constraint so concurrent
// double-submission is rejected deterministically.
type Upvote struct {
	IssueID   string    `bson:"issue" json:"issue"`
	UserID    string    `bson:"user" json:"user"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
