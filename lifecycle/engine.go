package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Ritabrata777/CivicLens/geo"
	"github.com/Ritabrata777/CivicLens/models"
	"github.com/Ritabrata777/CivicLens/store"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized      = errors.New("admin access required")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingReason     = errors.New("a reason is required to reject an issue")
	ErrMissingEvidence   = errors.New("a proof image is required to resolve an issue")
)

// allowedNext is the status state machine. Resolved and Rejected are terminal.
var allowedNext = map[models.IssueStatus][]models.IssueStatus{
	models.Pending:    {models.Seen, models.Rejected},
	models.Seen:       {models.Accepted, models.Rejected},
	models.Accepted:   {models.InProgress},
	models.InProgress: {models.Resolved},
	models.Resolved:   {},
	models.Rejected:   {},
}

func canTransition(from, to models.IssueStatus) bool {
	// Re-applying the current status is allowed; the log is append-only and
	// duplicate admin clicks simply land twice.
	if from == to {
		return true
	}
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DuplicateFinder reports how many existing issues look like duplicates of
// the given one. Used as a best-effort enrichment during creation.
type DuplicateFinder func(ctx context.Context, issueID string) (int, error)

// Engine enforces the issue lifecycle: the status state machine, authorization,
// and the side effects coupled to each transition. All durable writes go
// through the store; the engine holds no state of its own.
type Engine struct {
	store          store.Store
	geocoder       geo.Geocoder    // optional
	findDuplicates DuplicateFinder // optional
}

func NewEngine(s store.Store, geocoder geo.Geocoder, findDuplicates DuplicateFinder) *Engine {
	return &Engine{store: s, geocoder: geocoder, findDuplicates: findDuplicates}
}

func newIssueID() string {
	return "ISSUE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

type CreateInput struct {
	Title         string
	Description   string
	Category      models.IssueCategory
	OtherCategory string
	Address       string
	Latitude      *float64
	Longitude     *float64
	IsUrgent      bool
	ImageURL      *string
	LicensePlate  string
	ViolationType string
}

type CreateResult struct {
	Issue *models.Issue
	// Note carries non-fatal enrichment output, e.g. a duplicate warning.
	Note string
}

// Create writes a new issue with status Pending and its initial history event
// in one atomic unit. Geocoding and duplicate detection are collaborator
// calls whose failure never fails the creation.
func (e *Engine) Create(ctx context.Context, in CreateInput, actor models.CallerIdentity) (*CreateResult, error) {
	category := in.Category
	if category == models.Other && strings.TrimSpace(in.OtherCategory) != "" {
		category = models.IssueCategory(strings.TrimSpace(in.OtherCategory))
	}

	lat, lng := in.Latitude, in.Longitude
	if (lat == nil || lng == nil) && e.geocoder != nil && in.Address != "" {
		coords, err := e.geocoder.Resolve(ctx, in.Address)
		if err != nil {
			log.Printf("geocoding failed for %q: %v", in.Address, err)
		} else if coords != nil {
			lat, lng = &coords.Lat, &coords.Lng
		}
	}

	now := time.Now().UTC()
	issue := &models.Issue{
		ID:            newIssueID(),
		Title:         in.Title,
		Description:   in.Description,
		Category:      category,
		Status:        models.Pending,
		Address:       in.Address,
		Latitude:      lat,
		Longitude:     lng,
		ImageURL:      in.ImageURL,
		SubmittedBy:   actor.ID,
		SubmittedAt:   now,
		IsUrgent:      in.IsUrgent,
		LicensePlate:  in.LicensePlate,
		ViolationType: in.ViolationType,
	}
	first := models.IssueStatusEvent{
		IssueID:   issue.ID,
		Status:    models.Pending,
		Timestamp: now,
		UpdatedBy: actor.ID,
		Notes:     "Issue submitted.",
	}
	if err := e.store.CreateIssue(ctx, issue, first); err != nil {
		return nil, err
	}

	result := &CreateResult{Issue: issue}
	if e.findDuplicates != nil {
		matches, err := e.findDuplicates(ctx, issue.ID)
		switch {
		case err != nil:
			log.Printf("duplicate detection failed for %s: %v", issue.ID, err)
		case matches > 0:
			result.Note = fmt.Sprintf("This may duplicate %d existing report(s).", matches)
		}
	}
	return result, nil
}

type TransitionInput struct {
	Target        models.IssueStatus
	Notes         string
	TxHash        string
	EvidenceImage string
}

type TransitionResult struct {
	Issue *models.Issue
	// Warnings report best-effort side effects that failed after the status
	// change committed. The status change itself is never rolled back.
	Warnings []string
}

// Transition moves an issue to a new status. The status update and its
// history event commit atomically; blockchain recording and resolution
// evidence are attempted afterwards and reported, not retried.
func (e *Engine) Transition(ctx context.Context, issueID string, in TransitionInput, actor models.CallerIdentity) (*TransitionResult, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if !models.IsKnownStatus(in.Target) {
		return nil, ErrInvalidTransition
	}

	issue, err := e.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !canTransition(issue.Status, in.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, issue.Status, in.Target)
	}
	if in.Target == models.Rejected && strings.TrimSpace(in.Notes) == "" {
		return nil, ErrMissingReason
	}
	if in.Target == models.Resolved && in.EvidenceImage == "" {
		has, err := e.store.HasResolutionEvidence(ctx, issueID)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, ErrMissingEvidence
		}
	}

	now := time.Now().UTC()
	event := models.IssueStatusEvent{
		IssueID:   issueID,
		Status:    in.Target,
		Timestamp: now,
		UpdatedBy: actor.ID,
		Notes:     in.Notes,
	}
	if err := e.store.AppendTransition(ctx, issueID, in.Target, event); err != nil {
		return nil, err
	}
	issue.Status = in.Target

	result := &TransitionResult{Issue: issue}
	if in.TxHash != "" {
		rec := models.BlockchainRecord{
			IssueID:     issueID,
			TxHash:      in.TxHash,
			AdminID:     actor.ID,
			Status:      in.Target,
			Timestamp:   now,
			ExplorerURL: "https://sepolia.etherscan.io/tx/" + in.TxHash,
		}
		if err := e.store.InsertBlockchainRecord(ctx, rec); err != nil {
			log.Printf("blockchain record failed for %s@%s: %v", issueID, in.Target, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("blockchain record not stored: %v", err))
		}
	}
	if in.Target == models.Resolved && in.EvidenceImage != "" {
		ev := models.ResolutionEvidence{
			IssueID:       issueID,
			AdminID:       actor.ID,
			ProofImageURL: in.EvidenceImage,
			Notes:         in.Notes,
			Timestamp:     now,
		}
		if err := e.store.InsertResolutionEvidence(ctx, ev); err != nil {
			log.Printf("resolution evidence failed for %s: %v", issueID, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("resolution evidence not stored: %v", err))
		}
	}
	return result, nil
}

// Upvote records one user's support for an issue. The ledger insert and the
// counter increment are one transaction in the store, and the (issue, user)
// uniqueness constraint turns a concurrent duplicate into ErrAlreadyUpvoted.
func (e *Engine) Upvote(ctx context.Context, issueID, userID string) error {
	return e.store.InsertUpvote(ctx, models.Upvote{
		IssueID:   issueID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
}
