package store

import (
	"context"
	"errors"

	"github.com/Ritabrata777/CivicLens/models"
)

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUpvoted means the (issue, user) pair already holds an upvote.
	ErrAlreadyUpvoted = errors.New("already upvoted")
	// ErrDuplicateRecord means a uniqueness constraint other than the upvote
	// ledger rejected the write, e.g. a second blockchain record for the same
	// (issue, status) or a reused email address.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// Store is the durable storage capability set shared by both backends.
// Every method is transactionally atomic: CreateIssue writes the issue row
// and its first history event together, AppendTransition writes the status
// update and its event together, and InsertUpvote writes the ledger row and
// the counter increment together.
type Store interface {
	CreateIssue(ctx context.Context, issue *models.Issue, first models.IssueStatusEvent) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context) ([]models.Issue, error)
	ListIssuesByUser(ctx context.Context, userID string) ([]models.Issue, error)

	AppendTransition(ctx context.Context, issueID string, status models.IssueStatus, event models.IssueStatusEvent) error
	EventsForIssue(ctx context.Context, issueID string) ([]models.IssueStatusEvent, error)

	InsertUpvote(ctx context.Context, upvote models.Upvote) error

	InsertBlockchainRecord(ctx context.Context, rec models.BlockchainRecord) error
	BlockchainRecordsForIssue(ctx context.Context, issueID string) ([]models.BlockchainRecord, error)

	InsertResolutionEvidence(ctx context.Context, ev models.ResolutionEvidence) error
	HasResolutionEvidence(ctx context.Context, issueID string) (bool, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	Close(ctx context.Context) error
}
